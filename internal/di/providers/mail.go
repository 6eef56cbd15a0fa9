package providers

import (
	"github.com/samber/do/v2"

	"github.com/tourbook/tourbook-server/internal/config"
	"github.com/tourbook/tourbook-server/internal/email"
	"github.com/tourbook/tourbook-server/internal/logger"
)

// ProvideMailer provides the outgoing mailer. Without an SMTP host, mail is
// written to the log.
func ProvideMailer(i do.Injector) (*email.Mailer, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if cfg.Mail.Host == "" {
		log.Warn("SMTP not configured, emails will be logged")
		return email.NewMailer(email.NewLogSender(log.Logger), log.Logger), nil
	}

	sender, err := email.NewSMTPSender(email.SMTPConfig{
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
		From:     cfg.Mail.From,
	})
	if err != nil {
		return nil, err
	}

	log.Info("SMTP mailer configured", "host", cfg.Mail.Host, "port", cfg.Mail.Port)
	return email.NewMailer(sender, log.Logger), nil
}
