package gatewayip

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
)

// TelegramAPI is the base URL of the Telegram Bot API.
const TelegramAPI = "https://api.telegram.org"

// Telegram implements Notifier by sending chat messages through a bot.
type Telegram struct {
	Token  string
	ChatID string
	// BaseURL defaults to TelegramAPI.
	BaseURL string

	httpClient *http.Client
	logger     *log.Logger
}

func (t *Telegram) SetHTTPClient(c *http.Client) { t.httpClient = c }
func (t *Telegram) SetLogger(l *log.Logger)      { t.logger = l }

type telegramMessage struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Notify implements gatewayip.Notifier.
func (t *Telegram) Notify(ctx context.Context, text string) error {
	if t.Token == "" || t.ChatID == "" {
		return errors.New("telegram notifier requires a bot token and a chat ID")
	}
	base := t.BaseURL
	if base == "" {
		base = TelegramAPI
	}
	endpoint := strings.TrimSuffix(base, "/") + "/bot" + url.PathEscape(t.Token) + "/sendMessage"

	b, err := json.Marshal(telegramMessage{ChatID: t.ChatID, Text: text})
	if err != nil {
		return fmt.Errorf("error encoding message: %w", err)
	}
	ctx, cancel := boundContext(ctx, t.httpClient)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
	if err != nil {
		// the endpoint contains the bot token; keep it out of logs
		return errors.New("error creating telegram request")
	}
	req.Header.Set("Content-Type", "application/json")

	httpclient := t.httpClient
	if httpclient == nil {
		httpclient = http.DefaultClient
	}
	resp, err := httpclient.Do(req)
	if err != nil {
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return fmt.Errorf("telegram request failed: %w", err)
	}
	defer resp.Body.Close()

	var tr telegramResponse
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(body, &tr)
	if resp.StatusCode != http.StatusOK || !tr.OK {
		if tr.Description != "" {
			return fmt.Errorf("telegram returned %s: %s", resp.Status, tr.Description)
		}
		return fmt.Errorf("telegram returned %s", resp.Status)
	}
	if t.logger != nil {
		t.logger.Printf("telegram notification sent to chat %s", t.ChatID)
	}
	return nil
}
