package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/RibkiAnas/resumaker/config"
	"github.com/RibkiAnas/resumaker/logger"
	"github.com/RibkiAnas/resumaker/util/common"
)

// EmailService delivers transactional mail through an HTTP email API.
// Without an API key it logs the message instead, which keeps local
// development working without credentials.
type EmailService struct {
	client *http.Client
}

type emailPayload struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html,omitempty"`
	Text    string `json:"text"`
}

func (s *EmailService) httpClient() *http.Client {
	if s.client == nil {
		s.client = &http.Client{Timeout: 15 * time.Second}
	}
	return s.client
}

// SendEmail posts the message to the configured email API.
func (s *EmailService) SendEmail(ctx context.Context, to, subject, html, text string) error {
	apiKey := config.GetEmailAPIKey()
	if apiKey == "" {
		logger.Infof("email api key not set, skipping delivery to %s: %s", to, subject)
		logger.Debug("email body:", text)
		return nil
	}

	payload := emailPayload{
		From:    fmt.Sprintf("hello@%s", config.GetName()+".app"),
		To:      to,
		Subject: subject,
		HTML:    html,
		Text:    text,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, config.GetEmailAPIURL(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := s.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return common.NewErrorf("email api returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// SendVerificationEmail delivers a one-time code with the standard copy.
func (s *EmailService) SendVerificationEmail(ctx context.Context, to, purpose, code, verifyURL string) error {
	subject := fmt.Sprintf("Resumaker %s verification", purpose)
	text := fmt.Sprintf("Here's your verification code: %s\n\nOr open the link to verify: %s\n", code, verifyURL)
	html := fmt.Sprintf(
		"<p>Here's your verification code: <strong>%s</strong></p><p>Or <a href=\"%s\">click here</a> to verify.</p>",
		code, verifyURL)
	return s.SendEmail(ctx, to, subject, html, text)
}
