package notify

import (
	"net/smtp"
	"time"
)

func SetSendMail(s *SMTPSender, fn func(addr string, a smtp.Auth, from string, to []string, msg []byte) error) {
	s.sendMail = fn
}

func SetClock(n *Notifier, now func() time.Time) {
	n.now = now
}
