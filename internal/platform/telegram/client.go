package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"calmpath.app/memorycare/internal/store"
)

const defaultBaseURL = "https://api.telegram.org"

type Client struct {
	Token      string
	BaseURL    string
	httpClient *http.Client
}

func NewClient(token string) *Client {
	return &Client{
		Token:   token,
		BaseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type sendMessageReq struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

// SendMessage posts plain text to a chat. chatID may be numeric or an @channel name.
func (c *Client) SendMessage(ctx context.Context, chatID, text string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", c.BaseURL, c.Token)

	jsonBody, err := json.Marshal(sendMessageReq{ChatID: chatID, Text: text})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("telegram api returned status: %s, body: %s", resp.Status, string(bodyBytes))
	}
	return nil
}

// Notifier forwards care alerts to a single staff chat.
type Notifier struct {
	client *Client
	chatID string
}

func NewNotifier(client *Client, chatID string) *Notifier {
	return &Notifier{client: client, chatID: chatID}
}

func (n *Notifier) NotifyAlert(ctx context.Context, patient store.Patient, alert store.Alert) error {
	return n.client.SendMessage(ctx, n.chatID, formatAlert(patient, alert))
}

func formatAlert(patient store.Patient, alert store.Alert) string {
	var title string
	switch alert.Type {
	case store.AlertStatusChange:
		title = "Status alert"
	case store.AlertNoActivity:
		title = "Inactivity alert"
	default:
		title = "Alert"
	}
	return fmt.Sprintf("%s (room %s)\n%s\n%s", title, patient.Room, alert.Message, alert.CreatedAt.Format(time.RFC822))
}
