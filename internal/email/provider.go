// Package email sends transactional messages through Resend or Postmark.
package email

import (
	"context"
	"fmt"
	"net/http"
)

type Provider interface {
	SendEmail(ctx context.Context, email *Email) error
	ValidateAPIKey(ctx context.Context) error
}

type Email struct {
	To      string
	Subject string
	Text    string
	HTML    string
	// Tag groups messages in the provider's dashboard.
	Tag string
	// Metadata is attached to the message for lookups in the provider.
	Metadata map[string]string
}

type Config struct {
	Provider   string
	APIKey     string
	From       string
	HTTPClient *http.Client
}

// NewProvider returns nil without error when email is disabled.
func NewProvider(config Config) (Provider, error) {
	switch config.Provider {
	case "postmark":
		return NewPostmarkProvider(config.APIKey, config.From, config.HTTPClient), nil
	case "resend":
		return NewResendProvider(config.APIKey, config.From), nil
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("EMAIL_PROVIDER must be one of 'postmark', 'resend', or 'none'")
	}
}
