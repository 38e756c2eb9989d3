package pkg

import (
	"crypto/tls"
	"fmt"
	"html"

	"gopkg.in/gomail.v2"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string // 发件人邮箱
	Password string // 授权码/密码
	From     string // 显示的发件人，可与 Username 相同
}

// Enabled 未配置 SMTP 主机时不发送邮件
func (c SMTPConfig) Enabled() bool {
	return c.Host != ""
}

func SendEmail(cfg SMTPConfig, to, subject, htmlBody string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", cfg.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)

	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.TLSConfig = &tls.Config{ServerName: cfg.Host}
	return d.DialAndSend(m)
}

// DeployResultHTML 部署结果通知正文
func DeployResultHTML(communityName, outcome, detail string) string {
	return fmt.Sprintf(`<p>Hello,</p><p>Deployment of <b>%s</b> finished: <b>%s</b>.</p><p>%s</p>`,
		html.EscapeString(communityName), html.EscapeString(outcome), html.EscapeString(detail))
}
