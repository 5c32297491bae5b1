// Package notify delivers progress messages to a Telegram chat.
// Delivery is best effort: failures are logged and never returned.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"html"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const DefaultBaseURL = "https://api.telegram.org"

type Telegram struct {
	BaseURL string
	Token   string
	ChatID  string
	log     zerolog.Logger
	http    *http.Client
}

func NewTelegram(token, chatID string, log zerolog.Logger) *Telegram {
	return &Telegram{
		BaseURL: DefaultBaseURL,
		Token:   token,
		ChatID:  chatID,
		log:     log.With().Str("component", "telegram").Logger(),
		http:    &http.Client{Timeout: 12 * time.Second},
	}
}

type sendMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// Notify posts text with HTML parse mode.
func (t *Telegram) Notify(ctx context.Context, text string) {
	body, _ := json.Marshal(sendMessage{ChatID: t.ChatID, Text: text, ParseMode: "HTML"})
	url := strings.TrimRight(t.BaseURL, "/") + "/bot" + t.Token + "/sendMessage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		t.log.Error().Err(err).Msg("build telegram request")
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.http.Do(req)
	if err != nil {
		// the URL carries the bot token
		t.log.Error().Str("error", redact(err.Error(), t.Token)).Msg("telegram send failed")
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		rb, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		t.log.Error().Int("status", resp.StatusCode).Str("body", string(rb)).Msg("telegram rejected message")
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
}

func redact(s, secret string) string {
	if secret == "" {
		return s
	}
	return strings.ReplaceAll(s, secret, "***")
}

// Nop drops every message. Used when no bot token is configured.
type Nop struct{}

func (Nop) Notify(context.Context, string) {}

// Notifier is satisfied by Telegram and Nop.
type Notifier interface {
	Notify(ctx context.Context, text string)
}

// New returns a Telegram notifier when both token and chat id are set, else Nop.
func New(token, chatID string, log zerolog.Logger) Notifier {
	if token == "" || chatID == "" {
		log.Info().Msg("telegram notifications disabled")
		return Nop{}
	}
	return NewTelegram(token, chatID, log)
}

// Bold wraps s in <b> after escaping it for HTML parse mode.
func Bold(s string) string { return "<b>" + html.EscapeString(s) + "</b>" }
