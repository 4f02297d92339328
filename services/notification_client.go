package services

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

// Notification types the platform dispatcher understands.
const (
	NotifCompetitionJoined     = "competition_joined"
	NotifRankChanged           = "rank_changed"
	NotifActivityScored        = "activity_scored"
	NotifCompetitionStarted    = "competition_started"
	NotifCompetitionEndingSoon = "competition_ending_soon"
	NotifCompetitionEnded      = "competition_ended"
)

// NotificationClient posts to the platform's notification dispatcher.
// Delivery is fire-and-forget: failures are logged at the call site and
// never retried by this service.
type NotificationClient struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewNotificationClient(baseURL, token string) *NotificationClient {
	return &NotificationClient{
		BaseURL: baseURL,
		Token:   token,
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Send posts {user_id, type, data} to the notifications endpoint.
func (c *NotificationClient) Send(ctx context.Context, userID, notifType string, data map[string]interface{}) error {
	url := fmt.Sprintf("%s/notifications", c.BaseURL)

	body, _ := json.Marshal(map[string]interface{}{
		"user_id": userID,
		"type":    notifType,
		"data":    data,
	})

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("notification send failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		log.Printf("⚠️  [NOTIFY] Dispatcher returned %d for user %s (%s): %s",
			resp.StatusCode, userID, notifType, string(respBody))
		return fmt.Errorf("notification dispatcher returned %d", resp.StatusCode)
	}
	return nil
}
