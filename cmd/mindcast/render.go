package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/iabetor/mindcast/internal/audio"
	"github.com/iabetor/mindcast/internal/bus"
	"github.com/iabetor/mindcast/internal/config"
	"github.com/iabetor/mindcast/internal/logger"
	"github.com/iabetor/mindcast/internal/metrics"
	"github.com/iabetor/mindcast/internal/pipeline"
	"github.com/iabetor/mindcast/internal/script"
)

type renderOptions struct {
	ScriptPath string
	OutDir     string
	Voice      string
	MaxChars   int
}

// manifestEntry 是 manifest.json 中的一个片段。
type manifestEntry struct {
	ID           string              `json:"id"`
	Index        int                 `json:"index"`
	File         string              `json:"file"`
	Text         string              `json:"text"`
	Duration     float64             `json:"duration_seconds"`
	MIMEType     string              `json:"mime_type"`
	Instructions []audio.Instruction `json:"instructions,omitempty"`
}

type manifest struct {
	Session  string          `json:"session"`
	Title    string          `json:"title,omitempty"`
	Voice    string          `json:"voice"`
	Batches  int             `json:"batches"`
	Complete bool            `json:"complete"`
	Duration float64         `json:"duration_seconds"`
	Segments []manifestEntry `json:"segments"`
}

// segmentSink 是编排器的消费者：把片段写成文件并可选地发布到总线。
// 回调都在编排器的 goroutine 中执行，无需加锁。
type segmentSink struct {
	dir       string
	publisher *bus.Client
	manifest  manifest
}

func (s *segmentSink) onSegmentReady(segs []audio.Segment) {
	for _, seg := range segs {
		if err := s.write(seg); err != nil {
			logger.Errorf("[main] 写入片段 %s 失败: %v", seg.ID, err)
		}
	}
}

func (s *segmentSink) write(seg audio.Segment) error {
	name := seg.ID + seg.Audio.Extension()
	path := filepath.Join(s.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := seg.Audio.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	// 压缩格式的时长在规整阶段未知，这里补测
	duration := seg.Duration
	if duration == 0 {
		if d, err := audio.ProbeDuration(seg.Audio); err == nil {
			duration = d
		} else {
			logger.Debugf("[main] 无法测量 %s 时长: %v", seg.ID, err)
		}
	}

	s.manifest.Segments = append(s.manifest.Segments, manifestEntry{
		ID:           seg.ID,
		Index:        seg.Index,
		File:         name,
		Text:         seg.Text,
		Duration:     duration,
		MIMEType:     seg.Audio.MIMEType,
		Instructions: seg.Instructions,
	})
	s.manifest.Duration += duration
	logger.Infof("[main] 已写出 %s (%.2fs)", name, duration)

	if s.publisher != nil {
		if err := s.publisher.PublishSegment(bus.SegmentEvent{
			Session:      s.manifest.Session,
			ID:           seg.ID,
			Index:        seg.Index,
			Text:         seg.Text,
			Duration:     duration,
			MIMEType:     seg.Audio.MIMEType,
			Path:         path,
			Instructions: seg.Instructions,
		}); err != nil {
			logger.Warnf("[main] 发布片段事件失败: %v", err)
		}
	}
	return nil
}

func (s *segmentSink) finish(complete bool) error {
	s.manifest.Complete = complete
	path := filepath.Join(s.dir, "manifest.json")

	data, err := json.MarshalIndent(s.manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化 manifest 失败: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("写入 manifest 失败: %w", err)
	}

	if s.publisher != nil {
		ev := bus.SessionEvent{
			Session:  s.manifest.Session,
			Segments: len(s.manifest.Segments),
			Batches:  s.manifest.Batches,
			Duration: s.manifest.Duration,
			Manifest: path,
		}
		publish := s.publisher.PublishComplete
		if !complete {
			publish = s.publisher.PublishCancelled
		}
		if err := publish(ev); err != nil {
			logger.Warnf("[main] 发布会话事件失败: %v", err)
		}
	}
	return nil
}

// runRender 加载脚本并运行编排器，直到完成或被取消。返回是否自然完成。
func runRender(ctx context.Context, stop <-chan struct{}, cfg *config.Config, m *metrics.Metrics, opts renderOptions) (bool, error) {
	sc, err := script.Load(opts.ScriptPath, opts.MaxChars)
	if err != nil {
		return false, err
	}

	voice := cfg.Pipeline.Voice
	if sc.Voice != "" {
		voice = sc.Voice
	}
	if opts.Voice != "" {
		voice = opts.Voice
	}

	if err := os.MkdirAll(opts.OutDir, 0755); err != nil {
		return false, fmt.Errorf("创建输出目录失败: %w", err)
	}

	sink := &segmentSink{
		dir: opts.OutDir,
		manifest: manifest{
			Session:  uuid.NewString(),
			Title:    sc.Title,
			Voice:    voice,
			Batches:  len(sc.Batches),
			Segments: []manifestEntry{},
		},
	}

	if len(cfg.Bus.Servers) > 0 {
		client, err := bus.Connect(cfg.Bus)
		if err != nil {
			// 总线只是通知渠道，连不上不影响渲染
			logger.Warnf("[main] 事件总线不可用: %v", err)
		} else {
			sink.publisher = client
			defer client.Close()
		}
	}

	o, err := pipeline.New(cfg, m)
	if err != nil {
		return false, fmt.Errorf("创建流水线失败: %w", err)
	}

	completed := false
	if err := o.Start(ctx, sc.Batches, voice, sink.onSegmentReady, func() { completed = true }); err != nil {
		return false, err
	}

	select {
	case <-o.Done():
	case <-stop:
		o.Stop()
		<-o.Done()
	}

	if err := sink.finish(completed); err != nil {
		return completed, err
	}
	logger.Infof("[main] session=%s 共 %d 个片段，总时长 %.1fs，输出目录 %s",
		sink.manifest.Session, len(sink.manifest.Segments), sink.manifest.Duration, opts.OutDir)
	return completed, nil
}
