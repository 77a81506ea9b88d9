package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// HeaderSize 是规范 WAV 头（fmt + data 两个子块）的字节数。
const HeaderSize = 44

const (
	// DefaultSampleRate 是供应商裸 PCM 的默认采样率。
	DefaultSampleRate = 24000
	// DefaultChannels 默认单声道。
	DefaultChannels = 1

	bitsPerSample  = 16
	bytesPerSample = bitsPerSample / 8
	formatPCM      = 1
)

// ErrDecode 表示音频负载无法解析。
var ErrDecode = errors.New("audio decode error")

// Format 描述 16-bit PCM 的采样参数。
type Format struct {
	SampleRate int
	Channels   int
}

// DefaultFormat 返回 24kHz 单声道 16-bit 格式。
func DefaultFormat() Format {
	return Format{SampleRate: DefaultSampleRate, Channels: DefaultChannels}
}

// BlockAlign 返回一帧（所有声道各一个样本）的字节数。
func (f Format) BlockAlign() int {
	return f.Channels * bytesPerSample
}

// ByteRate 返回每秒字节数。
func (f Format) ByteRate() int {
	return f.SampleRate * f.BlockAlign()
}

// Seconds 按该格式估算 n 字节 PCM 的时长。
func (f Format) Seconds(n int) float64 {
	if f.ByteRate() <= 0 || n <= 0 {
		return 0
	}
	return float64(n) / float64(f.ByteRate())
}

// wavHeader 对应 44 字节规范头的内存布局，按小端序写出。
type wavHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // 文件大小 - 8
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // PCM 为 16
	AudioFormat   uint16  // PCM 为 1
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32  // PCM 数据字节数
}

// EncodeHeader 为 dataLen 字节的 PCM 数据生成 44 字节 WAV 头。
func EncodeHeader(dataLen int, f Format) []byte {
	h := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     uint32(36 + dataLen),
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   formatPCM,
		NumChannels:   uint16(f.Channels),
		SampleRate:    uint32(f.SampleRate),
		ByteRate:      uint32(f.ByteRate()),
		BlockAlign:    uint16(f.BlockAlign()),
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: uint32(dataLen),
	}

	buf := bytes.NewBuffer(make([]byte, 0, HeaderSize))
	// 写入 bytes.Buffer 不会失败
	_ = binary.Write(buf, binary.LittleEndian, h)
	return buf.Bytes()
}

// WrapPCM 在 PCM 数据前拼接规范 WAV 头，PCM 字节原样保留。
func WrapPCM(pcm []byte, f Format) []byte {
	out := make([]byte, 0, HeaderSize+len(pcm))
	out = append(out, EncodeHeader(len(pcm), f)...)
	return append(out, pcm...)
}

// IsWAV 检查前 12 字节是否为 RIFF/WAVE 魔数。
func IsWAV(data []byte) bool {
	return len(data) >= 12 &&
		string(data[0:4]) == "RIFF" &&
		string(data[8:12]) == "WAVE"
}

// HeaderFormat 从规范 WAV 头读取声道数和采样率。
// 头部不完整或 fmt 子块不在标准位置时返回 ok=false。
func HeaderFormat(data []byte) (Format, bool) {
	if !IsWAV(data) || len(data) < HeaderSize || string(data[12:16]) != "fmt " {
		return Format{}, false
	}
	f := Format{
		Channels:   int(binary.LittleEndian.Uint16(data[22:24])),
		SampleRate: int(binary.LittleEndian.Uint32(data[24:28])),
	}
	if f.Channels <= 0 || f.SampleRate <= 0 {
		return Format{}, false
	}
	return f, true
}

// WAVDuration 按 (总长 - 44) / 字节率 估算规范 WAV 的时长。
func WAVDuration(data []byte, fallback Format) float64 {
	f, ok := HeaderFormat(data)
	if !ok {
		f = fallback
	}
	return f.Seconds(len(data) - HeaderSize)
}

// StripHeader 去掉 44 字节规范头，返回 PCM 数据。
func StripHeader(data []byte) ([]byte, error) {
	if !IsWAV(data) || len(data) < HeaderSize {
		return nil, fmt.Errorf("[audio] 不是规范 WAV 数据 (%d 字节): %w", len(data), ErrDecode)
	}
	return data[HeaderSize:], nil
}
