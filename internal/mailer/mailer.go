package mailer

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"

	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/domain"
	"github.com/wneessen/go-mail"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

const subjectPrefix = "SLA 排课系统"

// incoming 和 domain.MailMessage 相同，但 Data 保留原始 JSON，按邮件类型再解码
type incoming struct {
	Type string          `json:"type"`
	To   string          `json:"to"`
	Data json.RawMessage `json:"data"`
}

// Content 是渲染一封邮件需要的全部内容
type Content struct {
	To       string
	Subject  string
	Template *template.Template
	Data     any
}

// Decode 解析邮件队列中的消息，并根据邮件类型选择模板
func Decode(body []byte) (*Content, error) {
	var m incoming
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, err
	}

	var data domain.RunFinishedMailData
	if err := json.Unmarshal(m.Data, &data); err != nil {
		return nil, fmt.Errorf("邮件数据格式错误: %w", err)
	}

	c := &Content{To: m.To, Data: data}
	switch m.Type {
	case domain.MailTypeRunSucceeded:
		c.Subject = fmt.Sprintf("%s - 排课完成：%s", subjectPrefix, data.RunName)
		c.Template = templates.Lookup("run_succeeded.html")
	case domain.MailTypeRunFailed:
		c.Subject = fmt.Sprintf("%s - 排课失败：%s", subjectPrefix, data.RunName)
		c.Template = templates.Lookup("run_failed.html")
	default:
		return nil, fmt.Errorf("不支持的邮件类型 %s", m.Type)
	}

	return c, nil
}

// Build 构建可以直接发送的邮件
func Build(from string, c *Content) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("无法设置邮件发件人: %w", err)
	}
	if err := msg.To(c.To); err != nil {
		return nil, fmt.Errorf("无法设置邮件收件人: %w", err)
	}
	msg.Subject(c.Subject)
	if err := msg.SetBodyHTMLTemplate(c.Template, c.Data); err != nil {
		return nil, fmt.Errorf("无法设置邮件正文: %w", err)
	}

	return msg, nil
}

// Sender 是发送邮件的客户端，*mail.Client 满足该接口
type Sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Deliver 处理一条邮件队列消息。消息本身有问题时返回 retry=false，
// 只有发送失败才需要重新入队
func Deliver(ctx context.Context, s Sender, from string, body []byte) (c *Content, retry bool, err error) {
	c, err = Decode(body)
	if err != nil {
		return nil, false, err
	}

	msg, err := Build(from, c)
	if err != nil {
		return c, false, err
	}

	if err := s.DialAndSendWithContext(ctx, msg); err != nil {
		return c, true, fmt.Errorf("邮件发送失败: %w", err)
	}
	return c, false, nil
}
