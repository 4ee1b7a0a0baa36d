package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"darts-match-service/models"
	"darts-match-service/services"
	"darts-match-service/utils"
)

// APIClient talks to the match service on behalf of one authenticated user.
// It implements Fetcher and VisitSubmitter and performs every lifecycle
// operation. Result codes are mapped to the closed error set at this
// boundary; raw strings never travel further in.
type APIClient struct {
	BaseURL string
	Token   string
	UserID  string

	// HTTP serves the short request/response calls. The SSE stream uses its
	// own client without a timeout.
	HTTP *http.Client
}

func NewAPIClient(baseURL, token, userID string) *APIClient {
	return &APIClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		UserID:  userID,
		HTTP:    utils.HTTPClient,
	}
}

// --- lifecycle operations ---

func (c *APIClient) CreateChallenge(ctx context.Context, receiverID, gameType string, matchFormat int) (*models.Match, error) {
	body := map[string]any{
		"receiver_id":  receiverID,
		"game_type":    gameType,
		"match_format": matchFormat,
	}
	var m models.Match
	if err := c.do(ctx, http.MethodPost, "/matches", body, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *APIClient) Accept(ctx context.Context, matchID string) (*models.Match, error) {
	return c.lifecycle(ctx, matchID, "accept")
}

func (c *APIClient) Decline(ctx context.Context, matchID string) (*models.Match, error) {
	return c.lifecycle(ctx, matchID, "decline")
}

func (c *APIClient) Cancel(ctx context.Context, matchID string) (*models.Match, error) {
	return c.lifecycle(ctx, matchID, "cancel")
}

func (c *APIClient) Abort(ctx context.Context, matchID string) (*models.Match, error) {
	return c.lifecycle(ctx, matchID, "abort")
}

func (c *APIClient) Join(ctx context.Context, matchID string) (*models.Match, error) {
	return c.lifecycle(ctx, matchID, "join")
}

func (c *APIClient) lifecycle(ctx context.Context, matchID, op string) (*models.Match, error) {
	var m models.Match
	if err := c.do(ctx, http.MethodPost, "/matches/"+matchID+"/"+op, nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// SubmitVisit sends one completed turn. The response is an acknowledgment
// only; the authoritative effect is observed via the next fetched record.
func (c *APIClient) SubmitVisit(ctx context.Context, matchID string, darts []int) error {
	body := map[string]any{"darts": darts}
	return c.do(ctx, http.MethodPost, "/matches/"+matchID+"/visits", body, nil)
}

// --- Fetcher ---

func (c *APIClient) FetchMatch(ctx context.Context, matchID string) (*models.Match, error) {
	var m models.Match
	if err := c.do(ctx, http.MethodGet, "/matches/"+matchID, nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *APIClient) ListMatches(ctx context.Context) ([]models.Match, error) {
	var out struct {
		Matches []models.Match `json:"matches"`
	}
	if err := c.do(ctx, http.MethodGet, "/matches", nil, &out); err != nil {
		return nil, err
	}
	return out.Matches, nil
}

func (c *APIClient) HasJoined(ctx context.Context, matchID string) (bool, error) {
	var out struct {
		Joined bool `json:"joined"`
	}
	if err := c.do(ctx, http.MethodGet, "/matches/"+matchID+"/membership", nil, &out); err != nil {
		return false, err
	}
	return out.Joined, nil
}

// --- change feed ---

// StreamFeed opens the SSE feed and decodes frames into FeedEvents until the
// context is cancelled or the connection drops. Malformed frames are dropped
// and logged; the next notification supersedes them.
func (c *APIClient) StreamFeed(ctx context.Context) (<-chan FeedEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/matches/feed", nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)
	req.Header.Set("Accept", "text/event-stream")

	stream := &http.Client{} // no timeout: the feed is long-lived
	resp, err := stream.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}

	events := make(chan FeedEvent, 16)
	go func() {
		defer close(events)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		var eventType string
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "event:"):
				eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			case strings.HasPrefix(line, "data:"):
				data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
				var m models.Match
				if err := json.Unmarshal([]byte(data), &m); err != nil {
					log.Printf("[Feed] dropping malformed payload: %v", err)
					continue
				}
				select {
				case events <- FeedEvent{Type: eventType, Match: m}:
				case <-ctx.Done():
					return
				}
			case line == "":
				eventType = ""
			}
		}
	}()
	return events, nil
}

// --- plumbing ---

func (c *APIClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	c.setHeaders(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("call match service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *APIClient) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("X-User-ID", c.UserID)
}

func decodeError(resp *http.Response) error {
	var payload struct {
		Code  string `json:"code"`
		Error string `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err := json.Unmarshal(raw, &payload); err != nil || payload.Code == "" {
		return &services.UnknownCodeError{
			Code:   fmt.Sprintf("http_%d", resp.StatusCode),
			Detail: string(raw),
		}
	}
	return services.ErrorForCode(payload.Code, payload.Error)
}
