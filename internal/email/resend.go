package email

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/resend/resend-go/v2"

	"finance-ledger-go/internal/config"
)

var ErrNotConfigured = errors.New("RESEND_API_KEY missing")

type Message struct {
	To      []string
	Subject string
	HTML    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// ResendClient delivers messages through the Resend API.
type ResendClient struct {
	client *resend.Client
	from   string
	hasKey bool
}

func NewResendClient(cfg *config.Config) (*ResendClient, error) {
	client := resend.NewClient(cfg.ResendKey)
	if cfg.ResendBaseURL != "" {
		u, err := url.Parse(strings.TrimRight(cfg.ResendBaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("RESEND_BASE_URL: %w", err)
		}
		client.BaseURL = u
	}
	return &ResendClient{client: client, from: cfg.EmailFrom, hasKey: cfg.ResendKey != ""}, nil
}

func (c *ResendClient) Send(ctx context.Context, msg Message) error {
	if !c.hasKey {
		return ErrNotConfigured
	}
	if len(msg.To) == 0 {
		return fmt.Errorf("email: no recipients")
	}

	_, err := c.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    c.from,
		To:      msg.To,
		Subject: msg.Subject,
		Html:    msg.HTML,
	})
	if err != nil {
		return fmt.Errorf("resend: %w", err)
	}
	return nil
}
