// Package script 从文件加载旁白脚本，产出有序的批次列表。
package script

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/iabetor/mindcast/internal/pipeline"
)

// Script 是一份完整的旁白脚本。
type Script struct {
	Title   string           `yaml:"title" json:"title"`
	Voice   string           `yaml:"voice" json:"voice"`
	Batches []pipeline.Batch `yaml:"batches" json:"batches"`
}

// Load 读取脚本文件。
//
// .yaml/.yml/.json 可以是 {title, voice, batches} 对象，也可以直接是批次数组；
// 其他扩展名按纯文本处理，按空行分段，再把每段合并成不超过 maxChars 字符的批次。
func Load(path string, maxChars int) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("[script] 读取脚本 %s 失败: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		s, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("[script] 解析脚本 %s 失败: %w", path, err)
		}
		return s, nil
	default:
		return FromText(string(data), maxChars), nil
	}
}

// Parse 解析 YAML 或 JSON 格式的脚本。
func Parse(data []byte) (*Script, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	if len(node.Content) == 0 {
		return &Script{}, nil
	}

	root := node.Content[0]
	s := &Script{}
	switch root.Kind {
	case yaml.SequenceNode:
		if err := root.Decode(&s.Batches); err != nil {
			return nil, err
		}
	case yaml.MappingNode:
		if err := root.Decode(s); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("脚本顶层必须是对象或数组")
	}
	return s, nil
}

// FromText 把纯文本切分为批次，段落之间不插入空批次。
func FromText(text string, maxChars int) *Script {
	s := &Script{}
	for _, para := range splitParagraphs(text) {
		for _, chunk := range mergeSentences(para, maxChars) {
			s.Batches = append(s.Batches, pipeline.Batch{Text: chunk})
		}
	}
	return s
}
