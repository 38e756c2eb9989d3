package service

import (
	"fmt"
	"sync"

	"powerhause/internal/deploy"
	"powerhause/internal/pkg"

	"go.uber.org/zap"
)

// NotifyService 部署结束后给运营邮箱发通知
type NotifyService struct {
	smtp   pkg.SMTPConfig
	to     string
	send   func(cfg pkg.SMTPConfig, to, subject, htmlBody string) error
	logger *zap.Logger
	wg     sync.WaitGroup
}

func NewNotifyService(smtp pkg.SMTPConfig, to string, logger *zap.Logger) *NotifyService {
	return &NotifyService{smtp: smtp, to: to, send: pkg.SendEmail, logger: logger}
}

func (s *NotifyService) Enabled() bool {
	return s.smtp.Enabled() && s.to != ""
}

// OnOutcome is registered as a deployment observer. Mail is sent in the
// background so the deploy call is never held up by SMTP.
func (s *NotifyService) OnOutcome(out deploy.Outcome) {
	if !s.Enabled() {
		return
	}
	outcome := "deployed"
	detail := ""
	if out.Result != nil {
		detail = out.Result.Message
	}
	if out.State == deploy.Failed {
		outcome = "failed"
		detail = out.Reason
	}
	name := out.CommunityName
	if name == "" {
		name = out.CommunityID
	}
	subject := fmt.Sprintf("Community %s %s", name, outcome)
	body := pkg.DeployResultHTML(name, outcome, detail)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.send(s.smtp, s.to, subject, body); err != nil {
			s.logger.Error("failed to send deploy notification",
				zap.String("community_id", out.CommunityID),
				zap.Error(err),
			)
		}
	}()
}

// Wait 等待未发完的邮件（退出前调用）
func (s *NotifyService) Wait() {
	s.wg.Wait()
}
