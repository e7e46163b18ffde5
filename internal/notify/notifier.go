// Package notify delivers data-quality reports produced after a reload.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// maxListed caps how many offending keys a message spells out.
const maxListed = 5

// Notification carries one data-quality report.
type Notification struct {
	At             time.Time
	Table          string
	Dates          int
	Duplicates     []string
	Unparseable    []string
	MissingPeriods map[string][]string
	LevelsMissing  bool
	Channels       []string
	AdditionalMsg  string
}

// Notifier delivers notifications.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier pushes messages through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier constructs a Telegram notifier.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "notify_telegram").Logger(),
	}
}

// Notify calls sendMessage with the rendered report.
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    Render(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	n.logger.Info().Str("table", note.Table).
		Int("duplicates", len(note.Duplicates)).
		Int("unparseable", len(note.Unparseable)).
		Msg("data quality report sent (telegram)")
	return nil
}

// LogNotifier writes reports to the application log.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier constructs a LogNotifier.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "notify_log").Logger()}
}

// Notify logs the report at warn level.
func (n *LogNotifier) Notify(_ context.Context, note Notification) error {
	n.logger.Warn().
		Str("table", note.Table).
		Int("dates", note.Dates).
		Strs("duplicates", note.Duplicates).
		Strs("unparseable", note.Unparseable).
		Interface("missing_periods", note.MissingPeriods).
		Bool("levels_missing", note.LevelsMissing).
		Msg("data quality issues found")
	return nil
}

// Multi fans a notification out to every notifier and joins their errors.
type Multi []Notifier

// Notify delivers to all notifiers even when some fail.
func (m Multi) Notify(ctx context.Context, note Notification) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, note); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Render formats a report as plain text.
func Render(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString("[Index Returns Data Quality]\n")
	builder.WriteString(fmt.Sprintf("Checked: %s UTC\n", note.At.UTC().Format(time.RFC3339)))
	builder.WriteString(fmt.Sprintf("Table: %s (%d dates)\n", note.Table, note.Dates))
	if len(note.Duplicates) > 0 {
		builder.WriteString(fmt.Sprintf("Duplicate dates: %d %s\n", len(note.Duplicates), sample(note.Duplicates)))
	}
	if len(note.Unparseable) > 0 {
		builder.WriteString(fmt.Sprintf("Unparseable dates: %d %s\n", len(note.Unparseable), sample(note.Unparseable)))
	}
	if len(note.MissingPeriods) > 0 {
		names := make([]string, 0, len(note.MissingPeriods))
		for name := range note.MissingPeriods {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			builder.WriteString(fmt.Sprintf("Missing columns: %s %s\n", name, strings.Join(note.MissingPeriods[name], "/")))
		}
	}
	if note.LevelsMissing {
		builder.WriteString("Levels table unavailable\n")
	}
	if len(note.Channels) > 0 {
		builder.WriteString(fmt.Sprintf("Channels: %s\n", strings.Join(note.Channels, ",")))
	}
	if note.AdditionalMsg != "" {
		builder.WriteString(note.AdditionalMsg)
	}
	return builder.String()
}

func sample(keys []string) string {
	if len(keys) <= maxListed {
		return "[" + strings.Join(keys, ", ") + "]"
	}
	return "[" + strings.Join(keys[:maxListed], ", ") + ", ...]"
}

var (
	_ Notifier = (*TelegramNotifier)(nil)
	_ Notifier = (*LogNotifier)(nil)
	_ Notifier = Multi(nil)
)
