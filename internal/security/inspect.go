package security

import (
	"bytes"
	"path/filepath"
	"regexp"
	"strings"
)

// 正文风险标记
const (
	WarningScript       = "script"
	WarningEventHandler = "event_handler"
	WarningEmbed        = "embedded_object"
	WarningSpam         = "spam"
)

// Inspector 收到邮件的风险检查
//
// 只做标记，不拦截：邮件照常展示，前端根据标记提示用户。
type Inspector struct {
	patterns            map[string][]*regexp.Regexp
	spamKeywords        []string
	spamThreshold       int
	dangerousExtensions map[string]bool
}

// NewInspector 创建检查器
func NewInspector() *Inspector {
	return &Inspector{
		patterns: map[string][]*regexp.Regexp{
			WarningScript: {
				regexp.MustCompile(`(?i)<script[^>]*>`),
				regexp.MustCompile(`(?i)javascript:`),
				regexp.MustCompile(`(?i)document\.cookie`),
			},
			WarningEventHandler: {
				regexp.MustCompile(`(?i)\son(load|error|click|mouseover)\s*=`),
			},
			WarningEmbed: {
				regexp.MustCompile(`(?i)<(iframe|object|embed)[^>]*>`),
			},
		},
		spamKeywords: []string{
			"viagra", "casino", "lottery", "winner", "congratulations",
			"free money", "click here", "limited time", "act now",
			"guaranteed", "no risk", "earn money", "work from home",
		},
		spamThreshold: 3,
		dangerousExtensions: map[string]bool{
			".exe": true, ".bat": true, ".cmd": true, ".scr": true,
			".pif": true, ".com": true, ".vbs": true, ".js": true,
			".jar": true, ".msi": true, ".ps1": true, ".hta": true,
		},
	}
}

// InspectBody 返回正文命中的风险标记，按固定顺序排列
func (in *Inspector) InspectBody(body string) []string {
	var warnings []string
	for _, kind := range []string{WarningScript, WarningEventHandler, WarningEmbed} {
		for _, p := range in.patterns[kind] {
			if p.MatchString(body) {
				warnings = append(warnings, kind)
				break
			}
		}
	}

	lower := strings.ToLower(body)
	hits := 0
	for _, kw := range in.spamKeywords {
		if strings.Contains(lower, kw) {
			hits++
		}
	}
	if hits >= in.spamThreshold {
		warnings = append(warnings, WarningSpam)
	}
	return warnings
}

// DangerousName 文件扩展名是否可执行
func (in *Inspector) DangerousName(filename string) bool {
	return in.dangerousExtensions[strings.ToLower(filepath.Ext(filename))]
}

// executableSignatures 可执行文件魔数
var executableSignatures = [][]byte{
	{0x4D, 0x5A},             // PE
	{0x7F, 0x45, 0x4C, 0x46}, // ELF
	{0xFE, 0xED, 0xFA, 0xCE}, // Mach-O
	{0xCE, 0xFA, 0xED, 0xFE}, // Mach-O (reverse)
}

// Executable 内容是否以可执行文件魔数开头
func Executable(data []byte) bool {
	for _, sig := range executableSignatures {
		if bytes.HasPrefix(data, sig) {
			return true
		}
	}
	return false
}

// RiskyAttachment 扩展名或内容可执行
func (in *Inspector) RiskyAttachment(filename string, data []byte) bool {
	return in.DangerousName(filename) || Executable(data)
}
