package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/mail"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"tempmail/client/internal/config"
	"tempmail/client/internal/domain"
)

// ContactForm 联系表单
type ContactForm struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// sendMailFunc 与 smtp.SendMail 签名一致，便于测试替换
type sendMailFunc func(addr string, a sasl.Client, from string, to []string, r io.Reader) error

// ContactService 校验联系表单并通过 SMTP 中继投递
//
// 未配置中继时只记录日志。
type ContactService struct {
	cfg    config.SMTPConfig
	send   sendMailFunc
	logger *zap.Logger
}

// NewContactService 创建联系表单服务
func NewContactService(cfg config.SMTPConfig, logger *zap.Logger) *ContactService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContactService{
		cfg:    cfg,
		send:   smtp.SendMail,
		logger: logger.Named("contact"),
	}
}

// Enabled 是否配置了 SMTP 中继
func (s *ContactService) Enabled() bool {
	return s.cfg.Addr != "" && s.cfg.To != ""
}

// Validate 必填字段校验，返回 *domain.ValidationError
func (s *ContactService) Validate(form ContactForm) error {
	var fields []string
	if strings.TrimSpace(form.Name) == "" {
		fields = append(fields, "name")
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(form.Email)); err != nil {
		fields = append(fields, "email")
	}
	if strings.TrimSpace(form.Subject) == "" {
		fields = append(fields, "subject")
	}
	if strings.TrimSpace(form.Message) == "" {
		fields = append(fields, "message")
	}
	if len(fields) > 0 {
		return &domain.ValidationError{Fields: fields}
	}
	return nil
}

// Submit 校验并发送
func (s *ContactService) Submit(ctx context.Context, form ContactForm) error {
	if err := s.Validate(form); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if !s.Enabled() {
		s.logger.Info("contact form received (smtp relay not configured)",
			zap.String("name", form.Name),
			zap.String("email", form.Email),
			zap.String("subject", form.Subject))
		return nil
	}

	from := s.cfg.From
	if from == "" {
		from = s.cfg.Username
	}

	var auth sasl.Client
	if s.cfg.Username != "" {
		auth = sasl.NewPlainClient("", s.cfg.Username, s.cfg.Password)
	}

	body := buildContactMessage(from, s.cfg.To, form, time.Now())
	if err := s.send(s.cfg.Addr, auth, from, []string{s.cfg.To}, bytes.NewReader(body)); err != nil {
		s.logger.Error("failed to deliver contact form", zap.Error(err))
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}

	s.logger.Info("contact form delivered", zap.String("email", form.Email))
	return nil
}

// buildContactMessage 构造纯文本邮件
func buildContactMessage(from, to string, form ContactForm, now time.Time) []byte {
	var b bytes.Buffer
	header := func(k, v string) {
		fmt.Fprintf(&b, "%s: %s\r\n", k, v)
	}

	header("From", from)
	header("To", to)
	header("Reply-To", headerValue(form.Email))
	header("Subject", mime.QEncoding.Encode("utf-8", "[Contact] "+headerValue(form.Subject)))
	header("Date", now.Format(time.RFC1123Z))
	header("Message-ID", fmt.Sprintf("<%s@tempmail.client>", uuid.NewString()))
	header("MIME-Version", "1.0")
	header("Content-Type", "text/plain; charset=utf-8")
	header("Content-Transfer-Encoding", "8bit")
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "Name: %s\r\nEmail: %s\r\n\r\n", headerValue(form.Name), headerValue(form.Email))
	body := strings.ReplaceAll(form.Message, "\r\n", "\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	b.WriteString("\r\n")
	return b.Bytes()
}

// headerValue 去除换行，防止头部注入
func headerValue(s string) string {
	return strings.TrimSpace(strings.NewReplacer("\r", " ", "\n", " ").Replace(s))
}
