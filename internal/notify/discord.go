package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/donaldgifford/surplus-ml/internal/metrics"
)

const (
	colorGreen  = 0x2ECC71 // every model trained
	colorYellow = 0xF1C40F // some models trained
	colorRed    = 0xE74C3C // nothing trained
)

// DiscordNotifier implements Notifier via Discord webhook.
type DiscordNotifier struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordNotifier creates a new DiscordNotifier.
func NewDiscordNotifier(webhookURL string, opts ...DiscordOption) *DiscordNotifier {
	d := &DiscordNotifier{
		webhookURL: webhookURL,
		client:     http.DefaultClient,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DiscordOption configures a DiscordNotifier.
type DiscordOption func(*DiscordNotifier)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) DiscordOption {
	return func(d *DiscordNotifier) {
		d.client = c
	}
}

type discordWebhookPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Title       string              `json:"title"`
	Color       int                 `json:"color"`
	Description string              `json:"description,omitempty"`
	Timestamp   string              `json:"timestamp,omitempty"`
	Fields      []discordEmbedField `json:"fields,omitempty"`
	Footer      *discordFooter      `json:"footer,omitempty"`
}

type discordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordFooter struct {
	Text string `json:"text"`
}

// NotifyTraining posts a run summary as a single Discord embed.
func (d *DiscordNotifier) NotifyTraining(ctx context.Context, s *TrainingSummary) error {
	start := time.Now()
	err := d.post(ctx, discordWebhookPayload{Embeds: []discordEmbed{buildEmbed(s)}})
	metrics.NotificationDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues("failed").Inc()
		return err
	}
	metrics.NotificationsTotal.WithLabelValues("sent").Inc()
	return nil
}

func buildEmbed(s *TrainingSummary) discordEmbed {
	embed := discordEmbed{
		Title: fmt.Sprintf("Training run %s: %d of %d models trained",
			s.TrainingID, s.Succeeded(), len(s.Models)),
		Color:     summaryColor(s),
		Timestamp: s.Timestamp.UTC().Format(time.RFC3339),
	}

	for _, m := range s.Models {
		status := "trained"
		if !m.Success {
			status = "failed"
		}
		value := fmt.Sprintf("%s on %d samples", status, m.Samples)
		if m.Detail != "" {
			value += "\n" + m.Detail
		}
		embed.Fields = append(embed.Fields, discordEmbedField{Name: m.Name, Value: value})
	}

	if s.ReportPath != "" {
		embed.Footer = &discordFooter{Text: s.ReportPath}
	}
	return embed
}

func summaryColor(s *TrainingSummary) int {
	switch ok := s.Succeeded(); {
	case ok == len(s.Models):
		return colorGreen
	case ok > 0:
		return colorYellow
	default:
		return colorRed
	}
}

func (d *DiscordNotifier) post(ctx context.Context, payload discordWebhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling discord payload: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		d.webhookURL,
		bytes.NewReader(body),
	)
	if err != nil {
		return fmt.Errorf("creating discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending discord webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("discord rate limited (429)")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("discord returned %d (body unreadable)", resp.StatusCode)
		}
		return fmt.Errorf("discord returned %d: %s", resp.StatusCode, respBody)
	}

	return nil
}
