package notification

import (
	"context"
	"fmt"

	"unimarket/pkg/config"
	"unimarket/pkg/logger"
	"unimarket/pkg/model"

	"github.com/mailersend/mailersend-go"
)

// PermitMailer emails the stall permit to the vendor once a booking
// settles as paid. Delivery is best effort; the reconciliation engine
// never blocks a settlement on it.
type PermitMailer struct {
	client     *mailersend.Mailersend
	fromName   string
	fromEmail  string
	templateID string
	log        *logger.Logger
}

func NewPermitMailer(cfg *config.Config) *PermitMailer {
	return &PermitMailer{
		client:     mailersend.NewMailersend(cfg.MailerSendAPIKey),
		fromName:   cfg.MailerFromName,
		fromEmail:  cfg.MailerFromEmail,
		templateID: cfg.MailerTemplateID,
		log:        cfg.Log.WithComponent("permit-mailer"),
	}
}

func (m *PermitMailer) SendPermit(ctx context.Context, booking *model.Booking) error {
	from := mailersend.From{
		Name:  m.fromName,
		Email: m.fromEmail,
	}

	recipients := []mailersend.Recipient{
		{
			Name:  booking.Name,
			Email: booking.Email,
		},
	}

	personalization := []mailersend.Personalization{
		{
			Email: booking.Email,
			Data:  personalizationData(booking),
		},
	}

	message := m.client.Email.NewMessage()
	message.SetFrom(from)
	message.SetRecipients(recipients)
	message.SetSubject(fmt.Sprintf("Your stall permit for %s", booking.EventName))
	message.SetTemplateID(m.templateID)
	message.SetPersonalization(personalization)

	res, err := m.client.Email.Send(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to send permit email: %w", err)
	}

	m.log.Info("Stall permit sent",
		"booking_id", booking.ID,
		"email", booking.Email,
		"message_id", res.Header.Get("X-Message-Id"),
	)
	return nil
}

// personalizationData builds the substitutions the permit template
// renders with
func personalizationData(booking *model.Booking) map[string]interface{} {
	return map[string]interface{}{
		"to_name":    booking.Name,
		"to_email":   booking.Email,
		"event_name": booking.EventName,
		"stall_name": booking.StallName,
		"duration":   model.DurationLabel(booking.Duration),
		"amount":     booking.Price,
		"booking_id": booking.ID,
	}
}
