package email

import (
	"context"
	"errors"
	"fmt"

	resend "github.com/resend/resend-go/v3"
)

type ResendProvider struct {
	from   string
	client *resend.Client
}

func NewResendProvider(apiKey, from string) *ResendProvider {
	return &ResendProvider{
		from:   from,
		client: resend.NewClient(apiKey),
	}
}

func (r *ResendProvider) SendEmail(ctx context.Context, email *Email) error {
	if email == nil {
		return errors.New("email is required")
	}
	if email.HTML == "" && email.Text == "" {
		return errors.New("email body is empty")
	}

	params := &resend.SendEmailRequest{
		From:    r.from,
		To:      []string{email.To},
		Subject: email.Subject,
		Html:    email.HTML,
		Text:    email.Text,
	}
	if email.Tag != "" {
		params.Tags = append(params.Tags, resend.Tag{Name: "category", Value: email.Tag})
	}
	for name, value := range email.Metadata {
		params.Tags = append(params.Tags, resend.Tag{Name: name, Value: value})
	}

	sent, err := r.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to send email via resend: %w", err)
	}
	if sent == nil || sent.Id == "" {
		return errors.New("resend accepted the email without an id")
	}
	return nil
}

// ValidateAPIKey lists the account's API keys, which fails for revoked or
// send-only keys.
func (r *ResendProvider) ValidateAPIKey(ctx context.Context) error {
	if _, err := r.client.ApiKeys.ListWithContext(ctx); err != nil {
		return fmt.Errorf("invalid resend API key: %w", err)
	}
	return nil
}
