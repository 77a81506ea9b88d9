package audio

import (
	"fmt"
	"mime"
	"strconv"
	"strings"
)

// MIMEWAV 是规范容器的 MIME 类型。
const MIMEWAV = "audio/wav"

// compressedMarkers 出现在容器提示中即视为压缩格式。
var compressedMarkers = []string{"mpeg", "mp3", "ogg", "opus", "aac", "webm", "flac", "mp4", "m4a"}

// Normalizer 把各供应商返回的原始音频统一成可播放片段。
type Normalizer struct {
	raw Format // 无头 PCM 的默认格式
}

// NewNormalizer 创建 Normalizer，raw 中未设置的字段取默认值（24kHz 单声道）。
func NewNormalizer(raw Format) *Normalizer {
	if raw.SampleRate <= 0 {
		raw.SampleRate = DefaultSampleRate
	}
	if raw.Channels <= 0 {
		raw.Channels = DefaultChannels
	}
	return &Normalizer{raw: raw}
}

// Normalize 分类并封装一个批次的合成结果。
// 当前始终返回恰好一个片段，Text 留空由调用方填写。
//
// 分类顺序：
//  1. 前 12 字节为 RIFF/WAVE：已是规范容器，不重新编码
//  2. containerHint 指明压缩格式：原样封装，时长记为 0
//  3. 其余按无头 16-bit LE PCM 处理，合成 44 字节头
func (n *Normalizer) Normalize(data []byte, index int, instructions []Instruction, containerHint string) ([]Segment, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("[audio] 批次 %d 音频为空: %w", index, ErrDecode)
	}

	var (
		res      *Resource
		duration float64
	)

	switch {
	case IsWAV(data):
		res = NewResource(data, MIMEWAV)
		duration = WAVDuration(data, n.raw)
	default:
		if mt, ok := compressedType(containerHint); ok {
			res = NewResource(data, mt)
			break
		}
		f := rawFormat(containerHint, n.raw)
		// PCM 原样保留，不完整的尾帧也不截断；data 子块长度记录真实字节数
		res = NewResource(WrapPCM(data, f), MIMEWAV)
		duration = f.Seconds(len(data))
	}

	return []Segment{{
		ID:           SegmentID(index),
		Index:        index,
		Audio:        res,
		Duration:     duration,
		Instructions: instructions,
	}}, nil
}

// SegmentID 返回批次序号对应的片段 ID。
func SegmentID(index int) string {
	return fmt.Sprintf("segment-%d-0", index)
}

// compressedType 判断容器提示是否为压缩格式，返回规范化的 MIME 类型。
func compressedType(hint string) (string, bool) {
	if hint == "" {
		return "", false
	}
	mt, _, err := mime.ParseMediaType(hint)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(hint))
	}
	for _, marker := range compressedMarkers {
		if strings.Contains(mt, marker) {
			return mt, true
		}
	}
	return "", false
}

// rawFormat 从形如 "audio/L16;rate=24000;channels=1" 的提示中读取 PCM 参数。
func rawFormat(hint string, fallback Format) Format {
	f := fallback
	if hint == "" {
		return f
	}
	_, params, err := mime.ParseMediaType(hint)
	if err != nil {
		return f
	}
	if v, err := strconv.Atoi(params["rate"]); err == nil && v > 0 {
		f.SampleRate = v
	}
	if v, err := strconv.Atoi(params["channels"]); err == nil && v > 0 {
		f.Channels = v
	}
	return f
}
