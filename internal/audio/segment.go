package audio

import (
	"bytes"
	"io"
	"mime"
	"strings"

	"github.com/google/uuid"
)

// Instruction 是附着在批次上的声效指令。
// 流水线不解析其内容，只原样转交给生成的片段。
type Instruction map[string]any

// Segment 是一个可播放的音频片段。
type Segment struct {
	// ID 形如 segment-<批次序号>-0。
	ID string `json:"id"`
	// Index 是片段所属批次在脚本中的序号。
	Index int `json:"index"`
	// Audio 由 Normalizer 创建，所有权归接收片段的一方。
	Audio *Resource `json:"-"`
	// Text 由编排器填入，Normalizer 不知道文本内容。
	Text string `json:"text"`
	// Duration 单位为秒；压缩格式为 0，留给播放时测量。
	Duration     float64       `json:"duration_seconds"`
	Instructions []Instruction `json:"instructions,omitempty"`
}

// Resource 是一段可播放音频数据的句柄。
type Resource struct {
	ID       string
	MIMEType string
	data     []byte
}

// NewResource 用给定数据和 MIME 类型创建句柄。
func NewResource(data []byte, mimeType string) *Resource {
	return &Resource{
		ID:       uuid.NewString(),
		MIMEType: mimeType,
		data:     data,
	}
}

// Bytes 返回底层数据，调用方不应修改。
func (r *Resource) Bytes() []byte { return r.data }

// Len 返回数据字节数。
func (r *Resource) Len() int { return len(r.data) }

// Reader 返回一个可 Seek 的只读视图。
func (r *Resource) Reader() *bytes.Reader { return bytes.NewReader(r.data) }

// WriteTo 实现 io.WriterTo。
func (r *Resource) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(r.data)
	return int64(n), err
}

// Extension 根据 MIME 类型返回文件扩展名（含点）。
func (r *Resource) Extension() string {
	mt, _, err := mime.ParseMediaType(r.MIMEType)
	if err != nil {
		mt = strings.ToLower(r.MIMEType)
	}
	switch mt {
	case MIMEWAV, "audio/x-wav", "audio/vnd.wave":
		return ".wav"
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/ogg", "audio/opus":
		return ".ogg"
	case "audio/aac":
		return ".aac"
	case "audio/webm":
		return ".webm"
	case "audio/flac":
		return ".flac"
	case "audio/mp4", "audio/m4a", "audio/x-m4a":
		return ".m4a"
	}
	return ".bin"
}
