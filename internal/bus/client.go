// Package bus 把流水线事件发布到 NATS，供播放端或其他服务订阅。
package bus

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/iabetor/mindcast/internal/audio"
	"github.com/iabetor/mindcast/internal/config"
	"github.com/iabetor/mindcast/internal/logger"
)

// 主题后缀，完整主题为 <prefix>.<suffix>。
const (
	SubjectSegmentReady     = "segment.ready"
	SubjectSessionComplete  = "session.complete"
	SubjectSessionCancelled = "session.cancelled"
)

// SegmentEvent 描述一个已就绪的片段。音频本身不走总线，只给出文件位置。
type SegmentEvent struct {
	Session      string              `json:"session"`
	ID           string              `json:"id"`
	Index        int                 `json:"index"`
	Text         string              `json:"text"`
	Duration     float64             `json:"duration_seconds"`
	MIMEType     string              `json:"mime_type"`
	Path         string              `json:"path,omitempty"`
	Instructions []audio.Instruction `json:"instructions,omitempty"`
}

// SessionEvent 描述一次运行的结束。
type SessionEvent struct {
	Session  string  `json:"session"`
	Segments int     `json:"segments"`
	Batches  int     `json:"batches"`
	Duration float64 `json:"duration_seconds"`
	Manifest string  `json:"manifest,omitempty"`
}

// Client 封装 NATS 连接。
type Client struct {
	conn   *nats.Conn
	prefix string
}

// Connect 按配置连接 NATS。
func Connect(cfg config.BusConfig) (*Client, error) {
	if len(cfg.Servers) == 0 {
		return nil, errors.New("[bus] 未配置 NATS 服务器")
	}

	options := []nats.Option{
		nats.Name("mindcast"),
		nats.Timeout(time.Duration(cfg.ConnectTimeoutMs) * time.Millisecond),
	}
	if cfg.Token != "" {
		options = append(options, nats.Token(cfg.Token))
	}

	url := strings.Join(cfg.Servers, ",")
	conn, err := nats.Connect(url, options...)
	if err != nil {
		return nil, fmt.Errorf("[bus] 连接 NATS 失败: %w", err)
	}

	prefix := strings.Trim(cfg.SubjectPrefix, ".")
	if prefix == "" {
		prefix = "mindcast"
	}

	logger.Infof("[bus] 已连接 NATS: %s (prefix=%s)", url, prefix)
	return &Client{conn: conn, prefix: prefix}, nil
}

// Subject 返回带前缀的完整主题。
func (c *Client) Subject(suffix string) string {
	return c.prefix + "." + suffix
}

// PublishSegment 发布片段就绪事件。
func (c *Client) PublishSegment(ev SegmentEvent) error {
	return c.publish(SubjectSegmentReady, ev)
}

// PublishComplete 发布会话完成事件。
func (c *Client) PublishComplete(ev SessionEvent) error {
	return c.publish(SubjectSessionComplete, ev)
}

// PublishCancelled 发布会话被取消事件。
func (c *Client) PublishCancelled(ev SessionEvent) error {
	return c.publish(SubjectSessionCancelled, ev)
}

func (c *Client) publish(suffix string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("[bus] 序列化事件失败: %w", err)
	}
	subject := c.Subject(suffix)
	if err := c.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("[bus] 发布 %s 失败: %w", subject, err)
	}
	logger.Debugf("[bus] 已发布 %s (%d 字节)", subject, len(data))
	return nil
}

// Healthy 报告连接是否可用。
func (c *Client) Healthy() bool {
	return c != nil && c.conn != nil && c.conn.Status() == nats.CONNECTED
}

// Close 发送完缓冲中的消息后关闭连接。
func (c *Client) Close() {
	if c == nil {
		return
	}
	logger.Info("[bus] 关闭 NATS 连接")
	if err := c.conn.Drain(); err != nil {
		logger.Warnf("[bus] drain 失败: %v", err)
	}
	c.conn.Close()
}
