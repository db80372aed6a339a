package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/harveywai/leasedesk/pkg/database"
	"github.com/harveywai/leasedesk/pkg/expiry"
)

// DefaultTelegramAPI is the Bot API base URL.
const DefaultTelegramAPI = "https://api.telegram.org"

var (
	// ErrNoChannel is returned when no configured channel accepted the alert.
	ErrNoChannel = errors.New("failed to send notification to any channel")
	// ErrNoTemplate is returned when the event has no message template.
	ErrNoTemplate = errors.New("no message template")
)

// Store is the subset of the database store used for alert delivery.
type Store interface {
	MessageTemplate(ctx context.Context, event string) (database.MessageTemplate, error)
	ActiveNotificationConfigs(ctx context.Context) ([]database.NotificationConfig, error)
	ActiveTelegramConfigs(ctx context.Context) ([]database.TelegramConfig, error)
}

// Alert describes one at-risk lease scope.
type Alert struct {
	Domain database.Domain
	Scope  database.Scope
	Status expiry.Status
}

// Event returns the template event name for the alert's status.
func (a Alert) Event() string {
	if a.Status.Kind == expiry.Expired {
		return database.EventLeaseExpired
	}
	return database.EventLeaseCritical
}

func (a Alert) data() map[string]string {
	name, _, exp := a.Domain.Plan(a.Scope)
	return map[string]string{
		"domain":      a.Domain.DomainName,
		"scope":       string(a.Scope),
		"plan":        name,
		"client":      a.Domain.ClientName,
		"registrar":   a.Domain.Registrar,
		"expiry_date": exp,
		"days":        strconv.Itoa(a.Status.Days),
		"status":      a.Status.String(),
	}
}

// Payload is the JSON body sent to webhooks.
type Payload struct {
	Title  string         `json:"title"`
	Body   string         `json:"body"`
	Event  string         `json:"event"`
	Domain string         `json:"domain"`
	Time   string         `json:"time"`
	Extra  map[string]any `json:"extra,omitempty"`
}

// Notifier formats alerts from stored templates and fans them out to every
// active webhook and Telegram bot.
type Notifier struct {
	store       Store
	client      *http.Client
	telegramAPI string
	log         *zap.Logger
	now         func() time.Time
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithHTTPClient replaces the default client (10s timeout).
func WithHTTPClient(c *http.Client) Option {
	return func(n *Notifier) { n.client = c }
}

// WithTelegramAPI overrides the Bot API base URL.
func WithTelegramAPI(base string) Option {
	return func(n *Notifier) { n.telegramAPI = strings.TrimSuffix(base, "/") }
}

// New creates a Notifier.
func New(store Store, log *zap.Logger, opts ...Option) *Notifier {
	n := &Notifier{
		store:       store,
		client:      &http.Client{Timeout: 10 * time.Second},
		telegramAPI: DefaultTelegramAPI,
		log:         log,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify delivers the alert. It succeeds when at least one channel accepted it,
// or when no channel is configured at all.
func (n *Notifier) Notify(ctx context.Context, alert Alert) error {
	event := alert.Event()
	tmpl, err := n.store.MessageTemplate(ctx, event)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("%w for event %s", ErrNoTemplate, event)
		}
		return err
	}

	data := alert.data()
	title := formatMessage(tmpl.TitleTemplate, data)
	body := formatMessage(tmpl.BodyTemplate, data)

	configs, err := n.store.ActiveNotificationConfigs(ctx)
	if err != nil {
		return fmt.Errorf("load webhook configs: %w", err)
	}
	bots, err := n.store.ActiveTelegramConfigs(ctx)
	if err != nil {
		n.log.Warn("load telegram configs", zap.Error(err))
	}
	if len(configs) == 0 && len(bots) == 0 {
		n.log.Debug("no notification channel configured", zap.String("event", event))
		return nil
	}

	payload := Payload{
		Title:  title,
		Body:   body,
		Event:  event,
		Domain: alert.Domain.DomainName,
		Time:   n.now().Format(time.RFC3339),
		Extra: map[string]any{
			"scope":       alert.Scope,
			"expiry_date": data["expiry_date"],
			"days":        alert.Status.Days,
			"status":      alert.Status.Kind.String(),
			"client":      alert.Domain.ClientName,
		},
	}

	sent := 0
	for _, cfg := range configs {
		if err := n.sendWebhook(ctx, cfg, payload); err != nil {
			n.log.Warn("webhook notification failed",
				zap.String("platform", cfg.Platform), zap.String("domain", alert.Domain.DomainName), zap.Error(err))
			continue
		}
		sent++
	}
	for _, bot := range bots {
		if err := n.SendTelegram(ctx, bot.BotToken, bot.ChatID, title+"\n\n"+body); err != nil {
			n.log.Warn("telegram notification failed",
				zap.String("chat_id", bot.ChatID), zap.String("domain", alert.Domain.DomainName), zap.Error(err))
			continue
		}
		sent++
	}

	if sent == 0 {
		return ErrNoChannel
	}
	n.log.Info("notification sent",
		zap.String("event", event), zap.String("domain", alert.Domain.DomainName),
		zap.String("scope", string(alert.Scope)), zap.Int("channels", sent))
	return nil
}

func (n *Notifier) sendWebhook(ctx context.Context, cfg database.NotificationConfig, payload Payload) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.WebhookURL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg.SecretKey != "" {
		switch strings.ToLower(cfg.Platform) {
		case "dingtalk", "feishu":
			req.Header.Set("X-Secret-Key", cfg.SecretKey)
		default:
			req.Header.Set("Authorization", "Bearer "+cfg.SecretKey)
		}
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status code %d", resp.StatusCode)
	}
	return nil
}

// SendTelegram posts text to a chat through the Bot API sendMessage method.
func (n *Notifier) SendTelegram(ctx context.Context, token, chatID, text string) error {
	if token == "" || chatID == "" {
		return errors.New("telegram token and chat_id are required")
	}
	if text == "" {
		return errors.New("message content cannot be empty")
	}

	jsonData, err := json.Marshal(map[string]string{"chat_id": chatID, "text": text})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.telegramAPI, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var result struct {
		OK          bool   `json:"ok"`
		ErrorCode   int    `json:"error_code,omitempty"`
		Description string `json:"description,omitempty"`
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if err := json.Unmarshal(bodyBytes, &result); err == nil && result.Description != "" {
			return fmt.Errorf("telegram API error: %s (code: %d)", result.Description, result.ErrorCode)
		}
		return fmt.Errorf("telegram API returned status code %d: %s", resp.StatusCode, string(bodyBytes))
	}
	if err := json.Unmarshal(bodyBytes, &result); err == nil && !result.OK {
		return errors.New("telegram API returned ok=false")
	}
	return nil
}

var placeholderRe = regexp.MustCompile(`\{\{\s*(\w+)\s*\}\}`)

// formatMessage replaces {{key}} placeholders with values from data.
// Unknown keys are left as they are.
func formatMessage(template string, data map[string]string) string {
	if template == "" {
		return ""
	}
	return placeholderRe.ReplaceAllStringFunc(template, func(match string) string {
		key := placeholderRe.FindStringSubmatch(match)[1]
		if value, ok := data[key]; ok {
			return value
		}
		return match
	})
}
