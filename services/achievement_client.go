package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Achievement event types this service reports.
const (
	AchievementCompetitionJoined = "competition_joined"
	AchievementTopThreeFinish    = "top_three_finish"
)

// AchievementClient reports competition events to the platform's
// achievement tracker service.
type AchievementClient struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewAchievementClient(baseURL, token string) *AchievementClient {
	return &AchievementClient{
		BaseURL: baseURL,
		Token:   token,
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// TrackEvent posts an achievement-relevant event; notify controls whether
// the tracker pushes its own unlock notification.
func (c *AchievementClient) TrackEvent(ctx context.Context, userID, eventType string, payload map[string]interface{}, notify bool) error {
	url := fmt.Sprintf("%s/achievements/events", c.BaseURL)

	body, _ := json.Marshal(map[string]interface{}{
		"user_id":    userID,
		"event_type": eventType,
		"payload":    payload,
		"notify":     notify,
	})

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("achievement track failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("achievement tracker returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
