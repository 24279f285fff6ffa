// Package messaging delivers bot replies to the channels tenants connect:
// Facebook Messenger, Instagram and Telegram.
package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Platform identifies a delivery channel.
type Platform string

const (
	PlatformFacebook  Platform = "facebook"
	PlatformInstagram Platform = "instagram"
	PlatformTelegram  Platform = "telegram"
)

// Per-platform message length caps, as enforced by the APIs.
const (
	facebookLimit  = 2000
	instagramLimit = 1000
	telegramLimit  = 4096

	// numberingReserve leaves room for the "i/n: " prefix on split parts.
	numberingReserve = 15
)

const (
	defaultGraphBaseURL    = "https://graph.facebook.com/v19.0"
	defaultTelegramBaseURL = "https://api.telegram.org"
)

type Client struct {
	httpClient      *http.Client
	graphBaseURL    string
	telegramBaseURL string
}

func NewClient() *Client {
	return &Client{
		httpClient:      &http.Client{Timeout: 30 * time.Second},
		graphBaseURL:    defaultGraphBaseURL,
		telegramBaseURL: defaultTelegramBaseURL,
	}
}

// NewClientWithBaseURLs is used by tests to point at stub servers.
func NewClientWithBaseURLs(graphBaseURL, telegramBaseURL string) *Client {
	c := NewClient()
	c.graphBaseURL = graphBaseURL
	c.telegramBaseURL = telegramBaseURL
	return c
}

func platformLimit(p Platform) int {
	switch p {
	case PlatformInstagram:
		return instagramLimit
	case PlatformTelegram:
		return telegramLimit
	default:
		return facebookLimit
	}
}

// SendMeta delivers text to a Messenger or Instagram recipient via the
// Graph API, splitting messages that exceed the platform cap.
func (c *Client) SendMeta(ctx context.Context, accessToken, recipientID string, platform Platform, text string) error {
	url := fmt.Sprintf("%s/me/messages?access_token=%s", c.graphBaseURL, accessToken)

	for _, part := range splitMessage(text, platformLimit(platform)) {
		payload := map[string]any{
			"recipient": map[string]string{"id": recipientID},
			"message":   map[string]string{"text": part},
		}
		if err := c.post(ctx, url, payload); err != nil {
			return fmt.Errorf("send %s message: %w", platform, err)
		}
	}
	return nil
}

// SendTelegram delivers text to a Telegram chat via the Bot API.
func (c *Client) SendTelegram(ctx context.Context, botToken, chatID, text string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", c.telegramBaseURL, botToken)

	for _, part := range splitMessage(text, telegramLimit) {
		payload := map[string]any{
			"chat_id": chatID,
			"text":    part,
		}
		if err := c.post(ctx, url, payload); err != nil {
			return fmt.Errorf("send telegram message: %w", err)
		}
	}
	return nil
}

func (c *Client) post(ctx context.Context, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("api error (%d): %s", resp.StatusCode, string(data))
	}
	return nil
}

// splitMessage cuts text into parts that fit the platform limit,
// preferring newline and space boundaries. Split parts carry a "i/n: "
// prefix so recipients can follow the sequence.
func splitMessage(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	size := limit - numberingReserve
	var pieces []string
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = cutAt(runes, start, end)
		}
		pieces = append(pieces, string(runes[start:end]))
		start = end
	}

	parts := make([]string, len(pieces))
	for i, p := range pieces {
		parts[i] = fmt.Sprintf("%d/%d: %s", i+1, len(pieces), p)
	}
	return parts
}

// cutAt retreats from the proposed cut to the nearest newline or space in
// the second half of the piece, falling back to a hard cut.
func cutAt(runes []rune, start, end int) int {
	for i := end - 1; i > start+(end-start)/2; i-- {
		if runes[i] == '\n' || runes[i] == ' ' {
			return i + 1
		}
	}
	return end
}
