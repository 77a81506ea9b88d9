package audio

import (
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
)

// ProbeDuration 测量片段的实际时长（秒）。
// Normalizer 对压缩格式只给出 0，由消费方在播放前调用这里补齐。
func ProbeDuration(r *Resource) (float64, error) {
	if r == nil || r.Len() == 0 {
		return 0, fmt.Errorf("[audio] 空资源: %w", ErrDecode)
	}
	if IsWAV(r.data) {
		return WAVDuration(r.data, DefaultFormat()), nil
	}
	if !isMP3(r.data, r.MIMEType) {
		return 0, fmt.Errorf("[audio] 无法测量 %s 的时长: %w", r.MIMEType, ErrDecode)
	}

	dec, err := mp3.NewDecoder(r.Reader())
	if err != nil {
		return 0, fmt.Errorf("[audio] MP3 解码失败: %w: %v", ErrDecode, err)
	}
	if dec.SampleRate() <= 0 {
		return 0, fmt.Errorf("[audio] MP3 采样率无效: %w", ErrDecode)
	}

	// bytes.Reader 可 Seek，Length 通常可用；否则完整解码一遍
	n := dec.Length()
	if n < 0 {
		n, err = io.Copy(io.Discard, dec)
		if err != nil {
			return 0, fmt.Errorf("[audio] 读取 MP3 PCM 失败: %w: %v", ErrDecode, err)
		}
	}
	return float64(n) / 4 / float64(dec.SampleRate()), nil
}
