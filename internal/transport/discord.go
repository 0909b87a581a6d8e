package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Discord sends posts through a channel webhook. Webhooks cannot reply to
// earlier messages, so every post is a new root and replyTo is ignored.
type Discord struct {
	httpClient *http.Client
	webhookURL string
	logger     *slog.Logger
}

type DiscordConfig struct {
	WebhookURL string
	Timeout    time.Duration
}

func NewDiscord(cfg DiscordConfig, logger *slog.Logger) *Discord {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Discord{
		httpClient: &http.Client{Timeout: timeout},
		webhookURL: cfg.WebhookURL,
		logger:     logger.With("transport", "discord"),
	}
}

func (d *Discord) Name() string {
	return "discord"
}

type discordMessage struct {
	ID string `json:"id"`
}

// Send posts the text (with an optional attachment) and returns the
// created message ID. wait=true makes the webhook return the message.
func (d *Discord) Send(ctx context.Context, text, imagePath, replyTo string) (string, error) {
	_ = replyTo

	var req *http.Request
	var err error
	if imagePath != "" {
		req, err = d.multipartRequest(ctx, text, imagePath)
	} else {
		req, err = d.jsonRequest(ctx, text)
	}
	if err != nil {
		return "", err
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var msg discordMessage
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if msg.ID == "" {
		return "", fmt.Errorf("webhook returned no message id")
	}

	d.logger.Debug("message sent", "message_id", msg.ID)
	return msg.ID, nil
}

func (d *Discord) jsonRequest(ctx context.Context, text string) (*http.Request, error) {
	body, err := json.Marshal(map[string]string{"content": text})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.waitURL(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (d *Discord) multipartRequest(ctx context.Context, text, imagePath string) (*http.Request, error) {
	file, err := os.Open(imagePath)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	payload, err := json.Marshal(map[string]string{"content": text})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	_ = writer.WriteField("payload_json", string(payload))

	part, err := writer.CreateFormFile("files[0]", filepath.Base(imagePath))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("copy image: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.waitURL(), &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req, nil
}

func (d *Discord) waitURL() string {
	return d.webhookURL + "?wait=true"
}
