package auth

import (
	"fmt"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/Evian1k/school12k/core"
)

// Notifier is any channel that can deliver a verification code out-of-band.
// Delivery is fire-and-forget; a nil error only means the code was handed
// to the channel, not that it reached the inbox.
type Notifier interface {
	SendCode(email, code string, purpose Purpose) error
}

type emailNotifier struct {
	conf    *core.Config
	mailSvc core.EmailService
}

var _ Notifier = (*emailNotifier)(nil)

func NewEmailNotifier(conf *core.Config, mailSvc core.EmailService) Notifier {
	return &emailNotifier{conf: conf, mailSvc: mailSvc}
}

func (n emailNotifier) SendCode(email, code string, purpose Purpose) error {
	subject := "Your sign-in code"
	if purpose == PurposeRegistration {
		subject = "Confirm your registration"
	}

	msg := &core.EmailMessage{
		To:           []mail.Address{{Address: email}},
		Subject:      subject,
		TemplateName: "verification-code",
		TemplateData: struct {
			Code      string
			Purpose   string
			ExpiresIn string
		}{
			Code:      code,
			Purpose:   string(purpose),
			ExpiresIn: n.conf.Verification.CodeTimeout.String(),
		},
	}
	if err := msg.Render(n.conf); err != nil {
		return errors.Wrap(err, "rendering verification email")
	}
	if !msg.HasContent() {
		// no template on disk; fall back to a plain body
		msg.BodyStr = fmt.Sprintf("Your %s verification code is %s. It expires in %s.",
			purpose, code, n.conf.Verification.CodeTimeout)
	}

	n.mailSvc.SendMessages(msg)
	return nil
}
