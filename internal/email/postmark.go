package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	postmarkBaseURL = "https://api.postmarkapp.com"
	// Transactional mail goes to the default stream; broadcasts use a separate one.
	postmarkStream = "outbound"
	// Postmark answers small JSON documents; anything larger is not a reply we understand.
	postmarkMaxResponseBytes = 1 << 20
)

// PostmarkProvider sends mail through Postmark's REST API.
type PostmarkProvider struct {
	token      string
	from       string
	baseURL    string
	httpClient *http.Client
}

func NewPostmarkProvider(token, from string, httpClient *http.Client) *PostmarkProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &PostmarkProvider{
		token:      token,
		from:       from,
		baseURL:    postmarkBaseURL,
		httpClient: httpClient,
	}
}

type postmarkMessage struct {
	From          string            `json:"From"`
	To            string            `json:"To"`
	Subject       string            `json:"Subject"`
	TextBody      string            `json:"TextBody,omitempty"`
	HTMLBody      string            `json:"HtmlBody,omitempty"`
	Tag           string            `json:"Tag,omitempty"`
	Metadata      map[string]string `json:"Metadata,omitempty"`
	MessageStream string            `json:"MessageStream"`
	TrackOpens    bool              `json:"TrackOpens"`
}

// postmarkReply is the envelope Postmark uses for both results and errors.
type postmarkReply struct {
	ErrorCode int    `json:"ErrorCode"`
	Message   string `json:"Message"`
	MessageID string `json:"MessageID"`
}

func (p *PostmarkProvider) SendEmail(ctx context.Context, email *Email) error {
	if email == nil {
		return errors.New("email is required")
	}
	if email.HTML == "" && email.Text == "" {
		return errors.New("email body is empty")
	}

	payload, err := json.Marshal(postmarkMessage{
		From:          p.from,
		To:            email.To,
		Subject:       email.Subject,
		TextBody:      email.Text,
		HTMLBody:      email.HTML,
		Tag:           email.Tag,
		Metadata:      email.Metadata,
		MessageStream: postmarkStream,
		TrackOpens:    true,
	})
	if err != nil {
		return fmt.Errorf("failed to encode postmark message: %w", err)
	}

	status, body, err := p.do(ctx, http.MethodPost, "/email", payload)
	if err != nil {
		return fmt.Errorf("failed to send email via postmark: %w", err)
	}

	var reply postmarkReply
	decodeErr := json.Unmarshal(body, &reply)
	switch {
	case decodeErr == nil && reply.ErrorCode != 0:
		return fmt.Errorf("postmark error (%d): %s", reply.ErrorCode, reply.Message)
	case status != http.StatusOK:
		return fmt.Errorf("postmark returned status %d: %s", status, string(body))
	case decodeErr != nil:
		return fmt.Errorf("failed to decode postmark reply: %w", decodeErr)
	case reply.MessageID == "":
		return errors.New("postmark accepted the email without a message id")
	}
	return nil
}

// ValidateAPIKey reads the server the token belongs to.
func (p *PostmarkProvider) ValidateAPIKey(ctx context.Context) error {
	status, body, err := p.do(ctx, http.MethodGet, "/server", nil)
	if err != nil {
		return fmt.Errorf("failed to validate postmark token: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("invalid postmark token: status %d: %s", status, string(body))
	}
	return nil
}

func (p *PostmarkProvider) do(ctx context.Context, method, path string, payload []byte) (int, []byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", p.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, postmarkMaxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, body, nil
}
