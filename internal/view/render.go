package view

import (
	"bytes"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"tempmail/client/internal/domain"
)

// MessageView 邮件详情视图
//
// 三个标签的内容都会生成，DefaultTab 只决定初始显示哪一个。
type MessageView struct {
	ID           string           `json:"id"`
	Sender       string           `json:"sender"`
	Receiver     string           `json:"receiver"`
	Subject      string           `json:"subject"`
	Date         *time.Time       `json:"date,omitempty"`
	Format       Format           `json:"format"`
	DefaultTab   Tab              `json:"defaultTab"`
	HTML         string           `json:"html"`
	MarkdownHTML string           `json:"markdownHtml"`
	Text         string           `json:"text"`
	Attachments  []AttachmentInfo `json:"attachments"`
	Warnings     []string         `json:"warnings,omitempty"`
}

// Renderer 邮件渲染器
type Renderer struct {
	md goldmark.Markdown
}

// NewRenderer 创建渲染器，Markdown 使用 GFM 扩展
//
// 原始 HTML 不透传，Markdown 标签中内嵌的 HTML 会被省略。
func NewRenderer() *Renderer {
	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM, extension.Table),
		),
	}
}

// Markdown 把正文渲染为 HTML
func (r *Renderer) Markdown(body string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(body), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderMessage 生成详情视图
//
// HTML 标签直接使用正文，由前端放进沙箱 iframe 展示。
func (r *Renderer) RenderMessage(msg domain.Message) (*MessageView, error) {
	format := DetectFormat(msg.Message)

	markdownHTML, err := r.Markdown(msg.Message)
	if err != nil {
		return nil, err
	}

	v := &MessageView{
		ID:           msg.ID,
		Sender:       msg.Sender,
		Receiver:     msg.Receiver,
		Subject:      msg.Subject,
		Format:       format,
		DefaultTab:   format.DefaultTab(),
		HTML:         msg.Message,
		MarkdownHTML: markdownHTML,
		Text:         msg.Message,
		Attachments:  Attachments(msg),
		Warnings:     inspector.InspectBody(msg.Message),
	}
	if t := msg.SortTime(); !t.IsZero() {
		v.Date = &t
	}
	return v, nil
}
