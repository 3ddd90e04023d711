package email

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
)

// Notifier sends plain-text notices through an SMTP relay. No body beyond
// the subject line: the notice is the message.
type Notifier struct {
	log  *slog.Logger
	addr string
	from string
}

func NewNotifier(log *slog.Logger, addr, from string) *Notifier {
	return &Notifier{log: log, addr: addr, from: from}
}

func (n *Notifier) Send(ctx context.Context, recipient, subject string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n", n.from, recipient, subject)
	if err := smtp.SendMail(n.addr, nil, n.from, []string{recipient}, []byte(msg)); err != nil {
		n.log.Error("notification send failed", "recipient", recipient, "err", err)
		return err
	}
	n.log.Info("notification sent", "recipient", recipient, "subject", subject)
	return nil
}
