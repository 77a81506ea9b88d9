package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

// DefaultMaxFade 是淡入淡出时长上限。
const DefaultMaxFade = 500 * time.Millisecond

// FadeOptions 控制整段录音的解码与淡入淡出。
type FadeOptions struct {
	// Raw 是无头 PCM 的格式，未设置时为 24kHz 单声道。
	Raw Format
	// ContainerHint 可选的 MIME 提示，用于识别没有 ID3 标签的 MP3。
	ContainerHint string
	// MaxFade 淡入淡出时长上限，默认 500ms。
	MaxFade time.Duration
}

// sampleBuffer 保存交错排列、归一化到 [-1, 1] 的样本。
type sampleBuffer struct {
	samples []float32
	format  Format
}

func (b *sampleBuffer) frames() int {
	return len(b.samples) / b.format.Channels
}

func (b *sampleBuffer) seconds() float64 {
	return float64(b.frames()) / float64(b.format.SampleRate)
}

// scratchPool 复用解码缓冲区，整段录音通常有数百万个样本。
var scratchPool = sync.Pool{
	New: func() any {
		s := make([]float32, 0, 1<<16)
		return &s
	},
}

// PrepareSession 对一整段会话录音做淡入淡出并重新封装为 WAV。
// 任何解码失败都返回 ErrDecode，不产生部分输出。
func PrepareSession(ctx context.Context, data []byte, opts FadeOptions) (*Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	buf, release, err := decodeSession(data, opts)
	if err != nil {
		return nil, err
	}
	// 成功、出错、提前返回都归还缓冲区
	defer release()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	applyFade(buf, opts.MaxFade)

	pcm := EncodeInt16LE(buf.samples)
	return NewResource(WrapPCM(pcm, buf.format), MIMEWAV), nil
}

// FadeDuration 返回 min(maxFade, total/4)，单位秒。
func FadeDuration(total float64, maxFade time.Duration) float64 {
	if maxFade <= 0 {
		maxFade = DefaultMaxFade
	}
	return math.Min(maxFade.Seconds(), total/4)
}

// FadeGain 返回 t 秒处的增益：淡入段线性上升，淡出段线性下降，中间为 1。
func FadeGain(t, total, fade float64) float64 {
	if fade <= 0 {
		return 1
	}
	switch {
	case t < fade:
		return t / fade
	case t > total-fade:
		return math.Max(0, (total-t)/fade)
	}
	return 1
}

func applyFade(buf *sampleBuffer, maxFade time.Duration) {
	ch := buf.format.Channels
	rate := float64(buf.format.SampleRate)
	frames := buf.frames()
	total := buf.seconds()
	fade := FadeDuration(total, maxFade)
	if fade <= 0 {
		return
	}

	for i := 0; i < frames; i++ {
		g := FadeGain(float64(i)/rate, total, fade)
		if g == 1 {
			continue
		}
		base := i * ch
		for c := 0; c < ch; c++ {
			buf.samples[base+c] *= float32(g)
		}
	}
}

func decodeSession(data []byte, opts FadeOptions) (*sampleBuffer, func(), error) {
	if len(data) == 0 {
		return nil, nil, fmt.Errorf("[audio] 会话音频为空: %w", ErrDecode)
	}

	sp := scratchPool.Get().(*[]float32)
	buf := &sampleBuffer{samples: (*sp)[:0]}
	release := func() {
		*sp = buf.samples[:0]
		scratchPool.Put(sp)
	}

	var err error
	switch {
	case IsWAV(data):
		err = decodeWAV(data, buf)
	case isMP3(data, opts.ContainerHint):
		err = decodeMP3(data, buf)
	default:
		if mt, ok := compressedType(opts.ContainerHint); ok {
			err = fmt.Errorf("[audio] 不支持的压缩格式 %s: %w", mt, ErrDecode)
			break
		}
		raw := opts.Raw
		if raw.SampleRate <= 0 {
			raw.SampleRate = DefaultSampleRate
		}
		if raw.Channels <= 0 {
			raw.Channels = DefaultChannels
		}
		err = decodeRaw(data, raw, buf)
	}
	if err == nil && len(buf.samples) == 0 {
		err = fmt.Errorf("[audio] 会话音频没有样本: %w", ErrDecode)
	}
	if err != nil {
		release()
		return nil, nil, err
	}
	return buf, release, nil
}

func decodeWAV(data []byte, buf *sampleBuffer) error {
	d := wav.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		return fmt.Errorf("[audio] 无效的 WAV 数据: %w", ErrDecode)
	}

	pcm, err := d.FullPCMBuffer()
	if err != nil {
		return fmt.Errorf("[audio] 读取 WAV 样本失败: %w: %v", ErrDecode, err)
	}

	depth := int(d.BitDepth)
	if depth != 16 && depth != 24 && depth != 32 {
		return fmt.Errorf("[audio] 不支持的位深 %d: %w", depth, ErrDecode)
	}
	channels := int(d.NumChans)
	if pcm.Format != nil && pcm.Format.NumChannels > 0 {
		channels = pcm.Format.NumChannels
	}
	if channels <= 0 || d.SampleRate == 0 {
		return fmt.Errorf("[audio] WAV 头缺少声道数或采样率: %w", ErrDecode)
	}

	buf.format = Format{SampleRate: int(d.SampleRate), Channels: channels}
	buf.samples = appendInts(buf.samples, pcm, depth)
	return nil
}

// appendInts 把 go-audio 的整数样本按位深归一化后追加到 dst。
// 与 AppendInt16LE 一样按 2^(depth-1) 缩放，16-bit 样本可逐位还原。
func appendInts(dst []float32, pcm *goaudio.IntBuffer, depth int) []float32 {
	scale := float32(int64(1) << (depth - 1))
	for _, v := range pcm.Data {
		dst = append(dst, float32(v)/scale)
	}
	return dst
}

func decodeMP3(data []byte, buf *sampleBuffer) error {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("[audio] MP3 解码失败: %w: %v", ErrDecode, err)
	}
	pcm, err := io.ReadAll(dec)
	if err != nil {
		return fmt.Errorf("[audio] 读取 MP3 PCM 失败: %w: %v", ErrDecode, err)
	}

	// go-mp3 固定输出立体声 16-bit LE，每帧 4 字节
	const bytesPerFrame = 4
	pcm = pcm[:len(pcm)/bytesPerFrame*bytesPerFrame]

	buf.format = Format{SampleRate: dec.SampleRate(), Channels: 2}
	buf.samples = AppendInt16LE(buf.samples, pcm)
	return nil
}

func decodeRaw(data []byte, f Format, buf *sampleBuffer) error {
	align := f.BlockAlign()
	if len(data) < align {
		return fmt.Errorf("[audio] PCM 数据不足一帧 (%d 字节): %w", len(data), ErrDecode)
	}
	data = data[:len(data)/align*align]

	buf.format = f
	buf.samples = AppendInt16LE(buf.samples, data)
	return nil
}

// isMP3 通过 ID3 标签或容器提示识别 MP3。
// 不单独依赖帧同步字，裸 PCM 里 0xFFEx 很常见。
func isMP3(data []byte, hint string) bool {
	if bytes.HasPrefix(data, []byte("ID3")) {
		return true
	}
	mt, ok := compressedType(hint)
	return ok && (strings.Contains(mt, "mpeg") || strings.Contains(mt, "mp3"))
}
