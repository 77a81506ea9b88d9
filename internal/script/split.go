package script

import (
	"strings"
	"unicode/utf8"
)

// DefaultMaxChars 是纯文本脚本切分时每个批次的最大字符数。
const DefaultMaxChars = 400

var sentenceEnders = []rune{'。', '！', '？', '；', '.', '!', '?', '\n'}

// extractSentence 尝试从文本中提取第一个完整句子。
func extractSentence(text string) (string, string, bool) {
	for i, r := range text {
		for _, ender := range sentenceEnders {
			if r == ender {
				splitAt := i + utf8.RuneLen(r)
				return text[:splitAt], text[splitAt:], true
			}
		}
	}
	return "", text, false
}

// mergeSentences 将一段文本按句分割后合并为若干块，每块不超过 maxChars 个字符。
// 单句超过上限时独占一块，不在句中截断。
func mergeSentences(text string, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}

	var chunks []string
	var current strings.Builder
	remaining := text

	flush := func() {
		s := strings.TrimSpace(current.String())
		if s != "" {
			chunks = append(chunks, s)
		}
		current.Reset()
	}

	appendPart := func(part string) {
		partLen := utf8.RuneCountInString(part)
		currentLen := utf8.RuneCountInString(current.String())
		if current.Len() > 0 && currentLen+partLen+1 > maxChars {
			flush()
		}
		if current.Len() > 0 && needsSpace(current.String()) {
			current.WriteByte(' ')
		}
		current.WriteString(part)
	}

	for {
		sentence, rest, found := extractSentence(remaining)
		if !found {
			if r := strings.TrimSpace(remaining); r != "" {
				appendPart(r)
			}
			break
		}
		remaining = rest
		if sentence = strings.TrimSpace(sentence); sentence != "" {
			appendPart(sentence)
		}
	}
	flush()
	return chunks
}

// needsSpace 报告在 s 之后拼接下一句时是否需要空格（中文句子之间不加）。
func needsSpace(s string) bool {
	r, _ := utf8.DecodeLastRuneInString(s)
	return r < utf8.RuneSelf
}

// splitParagraphs 按空行切分段落。
func splitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var (
		paragraphs []string
		current    []string
	)
	flush := func() {
		if len(current) > 0 {
			paragraphs = append(paragraphs, strings.Join(current, " "))
			current = nil
		}
	}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()
	return paragraphs
}
