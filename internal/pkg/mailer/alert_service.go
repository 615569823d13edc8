package mailer

import (
	"context"
	"fmt"
	"html"
	"sync"

	"curate-pipeline/internal/pipeline"
	"curate-pipeline/internal/pkg/logger"

	"gopkg.in/gomail.v2"
)

// Sender delivers one composed message. *gomail.Dialer satisfies it.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// AlertService emails an operator when a document reaches terminal failure.
// Mail goes out on a background goroutine so a slow SMTP server never holds
// up the pipeline.
type AlertService struct {
	sender      Sender
	senderEmail string
	senderName  string
	to          string
	logger      logger.ILogger
	wg          sync.WaitGroup
}

// NewAlertService returns nil when SMTP or the recipient is not configured;
// the orchestrator treats a nil alerter as disabled.
func NewAlertService(host string, port int, username, password, senderName, to string, log logger.ILogger) *AlertService {
	if host == "" || to == "" {
		return nil
	}
	return NewAlertServiceWithSender(gomail.NewDialer(host, port, username, password), username, senderName, to, log)
}

func NewAlertServiceWithSender(sender Sender, senderEmail, senderName, to string, log logger.ILogger) *AlertService {
	return &AlertService{
		sender:      sender,
		senderEmail: senderEmail,
		senderName:  senderName,
		to:          to,
		logger:      log,
	}
}

func (s *AlertService) NotifyFailure(_ context.Context, f pipeline.Failure) {
	m := s.compose(f)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.sender.DialAndSend(m); err != nil {
			s.logger.Error("MAILER", "Failed to send failure alert", map[string]interface{}{
				"document_id": f.DocumentId,
				"stage":       f.Stage,
				"error":       err.Error(),
			})
			return
		}
		s.logger.Info("MAILER", "Failure alert sent", map[string]interface{}{
			"document_id": f.DocumentId,
			"to":          s.to,
		})
	}()
}

// Wait blocks until queued alerts have been attempted.
func (s *AlertService) Wait() {
	s.wg.Wait()
}

func (s *AlertService) compose(f pipeline.Failure) *gomail.Message {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.senderEmail, s.senderName)
	m.SetHeader("To", s.to)
	m.SetHeader("Subject", fmt.Sprintf("[pipeline] %s %s failed at %s", f.DocumentType, shortId(f.DocumentId.String()), f.Stage))

	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<h2>Stage failed after %d attempts</h2>
			<table>
				<tr><td>Document</td><td>%s %s</td></tr>
				<tr><td>Edition</td><td>%s</td></tr>
				<tr><td>Stage</td><td>%s</td></tr>
				<tr><td>Last error</td><td><code>%s</code></td></tr>
			</table>
		</div>
	`, f.Attempts, f.DocumentType, f.DocumentId, f.AggregateId, f.Stage, html.EscapeString(f.Error))
	m.SetBody("text/html", body)
	return m
}

func shortId(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
