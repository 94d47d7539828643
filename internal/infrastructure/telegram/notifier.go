package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/Velocity-Developer/newads/internal/config"
	"github.com/Velocity-Developer/newads/internal/ports"
)

// maxMessageRunes is Telegram's sendMessage text limit.
const maxMessageRunes = 4096

// Notifier sends HTML messages to a Telegram chat via bot API.
type Notifier struct {
	endpoint string
	botToken string
	chatID   string
	client   *http.Client
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers bot token and chat identifier.
func NewNotifier(cfg config.TelegramConfig) *Notifier {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "https://api.telegram.org"
	}
	return &Notifier{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		botToken: cfg.BotToken,
		chatID:   cfg.ChatID,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// Notify posts an HTML message. When Telegram rejects the markup the message is
// resent as plain text.
func (n *Notifier) Notify(ctx context.Context, message string) error {
	if n.botToken == "" || n.chatID == "" || n.client == nil {
		return fmt.Errorf("telegram notifier misconfigured")
	}

	status, body, err := n.send(ctx, truncateRunes(message, maxMessageRunes), "HTML")
	if err != nil {
		return err
	}
	if status == http.StatusOK {
		return nil
	}
	if status != http.StatusBadRequest {
		return fmt.Errorf("telegram error: %d %s", status, body)
	}

	plain, err := PlainText(message)
	if err != nil {
		return fmt.Errorf("telegram rejected html (%s) and plain-text conversion failed: %w", body, err)
	}
	status, body, err = n.send(ctx, truncateRunes(plain, maxMessageRunes), "")
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("telegram error: %d %s", status, body)
	}
	return nil
}

func (n *Notifier) send(ctx context.Context, text, parseMode string) (int, string, error) {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.endpoint, n.botToken)
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", text)
	form.Set("disable_web_page_preview", "true")
	if parseMode != "" {
		form.Set("parse_mode", parseMode)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return resp.StatusCode, strings.TrimSpace(string(payload)), nil
}

// PlainText strips markup from an HTML message, keeping its text and line breaks.
func PlainText(message string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<pre>" + message + "</pre>"))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	return strings.TrimSpace(doc.Find("pre").First().Text()), nil
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-1]) + "…"
}
