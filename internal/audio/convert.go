package audio

import (
	"encoding/binary"
	"math"
)

// int16Scale 是 16-bit 样本与 [-1.0, 1.0) 之间的换算系数。
// 使用 2 的幂，解码再编码时未改动的样本能逐位还原。
const int16Scale = 1 << 15

// AppendInt16LE 把 16-bit 小端 PCM 解码为 [-1.0, 1.0) 的 float32 并追加到 dst。
// 末尾不足 2 字节的部分被忽略。dst 可以是池化的缓冲区。
func AppendInt16LE(dst []float32, b []byte) []float32 {
	n := len(b) / 2
	if cap(dst)-len(dst) < n {
		grown := make([]float32, len(dst), len(dst)+n)
		copy(grown, dst)
		dst = grown
	}
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(b[2*i:]))
		dst = append(dst, float32(s)/int16Scale)
	}
	return dst
}

// EncodeInt16LE 把 float32 样本四舍五入、钳位后编码为 16-bit 小端 PCM。
func EncodeInt16LE(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(toInt16(s)))
	}
	return out
}

func toInt16(s float32) int16 {
	v := math.Round(float64(s) * int16Scale)
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	}
	return int16(v)
}
