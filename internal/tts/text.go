package tts

import (
	"regexp"
	"strings"
)

// PauseMarker 插入在句末标点后，让供应商留出停顿。
const PauseMarker = "..."

const pausePlaceholder = "\x00"

var (
	// 舞台指示，如 [pause 5s]、[bell]
	directionRe = regexp.MustCompile(`\[[^\]]*\]`)
	ellipsisRe  = regexp.MustCompile(`\.{3,}|…+`)
	// 只匹配后面跟空白或结尾的标点，避免拆开 3.5 这类数字
	sentenceEndRe = regexp.MustCompile(`([.!?:])(\s|$)`)
	cjkEndRe      = regexp.MustCompile(`([。！？：])`)
	pauseRunRe    = regexp.MustCompile(`(?:\.\.\.\s*){2,}`)
	spaceRe       = regexp.MustCompile(`\s+`)
)

// PrepareText 在发送给供应商之前清理脚本文本：
// 去掉方括号指示，在句末标点和冒号后插入停顿标记，合并重复停顿，规整空白。
func PrepareText(text string) string {
	s := directionRe.ReplaceAllString(text, " ")
	s = ellipsisRe.ReplaceAllString(s, pausePlaceholder)
	s = sentenceEndRe.ReplaceAllString(s, "$1 "+pausePlaceholder+"$2")
	s = cjkEndRe.ReplaceAllString(s, "$1"+pausePlaceholder)
	s = strings.ReplaceAll(s, pausePlaceholder, PauseMarker)
	s = pauseRunRe.ReplaceAllString(s, PauseMarker+" ")
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
