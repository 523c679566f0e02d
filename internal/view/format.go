package view

import (
	"regexp"
	"strings"
)

// Format 邮件正文格式
type Format string

const (
	FormatHTML      Format = "html"
	FormatMarkdown  Format = "markdown"
	FormatPlainText Format = "text"
)

// Markdown 特征，按顺序检查，任一命中即判定为 Markdown
var markdownHeuristics = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^#{1,6}\s+\S`),        // 标题
	regexp.MustCompile(`\[[^\]\n]+\]\([^)\s]+\)`), // 链接
	regexp.MustCompile(`\*\*[^*\n]+\*\*`),         // 粗体
	regexp.MustCompile(`\*[^*\s][^*\n]*\*`),       // 斜体
	regexp.MustCompile("(?m)^\\s*```"),            // 代码块
	regexp.MustCompile(`(?m)^\s*[-*+]\s+\S`),      // 无序列表
	regexp.MustCompile(`(?m)^\s*\d+\.\s+\S`),      // 有序列表
}

// DetectFormat 判断正文格式
//
// 去除首尾空白后以 "<" 开头视为 HTML；否则按 Markdown 特征判断；都不满足为纯文本。
func DetectFormat(body string) Format {
	trimmed := strings.TrimSpace(body)
	if strings.HasPrefix(trimmed, "<") {
		return FormatHTML
	}
	for _, re := range markdownHeuristics {
		if re.MatchString(trimmed) {
			return FormatMarkdown
		}
	}
	return FormatPlainText
}

// Tab 详情页标签
type Tab string

const (
	TabHTML     Tab = "html"
	TabMarkdown Tab = "markdown"
	TabText     Tab = "text"
)

// DefaultTab 根据格式选择默认标签，用户仍可手动切换
func (f Format) DefaultTab() Tab {
	switch f {
	case FormatHTML:
		return TabHTML
	case FormatMarkdown:
		return TabMarkdown
	default:
		return TabText
	}
}
