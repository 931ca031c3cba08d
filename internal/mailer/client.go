package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// Client delivers mail through an HTTP mail API. With Skip set it logs and
// succeeds without calling out, for dev environments without a mail
// provider.
type Client struct {
	BaseURL string
	APIKey  string
	From    string
	Skip    bool
	HTTP    *http.Client
}

// New creates a mail client.
func New(baseURL, apiKey, from string, skip bool) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		From:    from,
		Skip:    skip,
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Send delivers one message. Callers treat failures as non-fatal.
func (c *Client) Send(ctx context.Context, to, subject, body string) error {
	if c.Skip {
		log.Printf("mailer skip: to=%s subject=%q", to, subject)
		return nil
	}
	if to == "" {
		return fmt.Errorf("mailer: recipient required")
	}

	payload, _ := json.Marshal(map[string]string{
		"from":    c.From,
		"to":      to,
		"subject": subject,
		"text":    body,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("mailer: create request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("mailer: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("mailer: send failed (%d): %s", resp.StatusCode, string(respBody))
	}
	return nil
}
