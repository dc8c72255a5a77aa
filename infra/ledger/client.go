// Package ledger is the HTTP client of the Scrimmage rewards API.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/scrimmage/discord-tracker-service/config"
	"github.com/scrimmage/discord-tracker-service/internal/service"
)

const (
	rewardsPath = "/integrations/rewards"
	usersPath   = "/integrations/users"
)

var (
	_ service.Ledger    = (*Client)(nil)
	_ service.Registrar = (*Client)(nil)
)

// ErrRejected is returned for 4xx answers; resending the same event would be
// rejected again.
var ErrRejected = errors.New("ledger rejected event")

type rewardRequest struct {
	EventID  string         `json:"eventId,omitempty"`
	UserID   string         `json:"userId"`
	DataType string         `json:"dataType"`
	Body     map[string]any `json:"body"`
}

type userRequest struct {
	ID         string            `json:"id"`
	Tags       []string          `json:"tags"`
	Properties map[string]string `json:"properties,omitempty"`
}

type userResponse struct {
	Token string `json:"token"`
}

type Client struct {
	http      *http.Client
	endpoint  string
	key       string
	namespace string
	cb        *gobreaker.CircuitBreaker
}

func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	return newClient(cfg.Rewards.APIServerEndpoint, cfg.Rewards.PrivateKey, cfg.Rewards.Namespace, cfg.Rewards.RequestTimeout, logger)
}

func newClient(endpoint, key, namespace string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		http:      &http.Client{Timeout: timeout},
		endpoint:  strings.TrimRight(endpoint, "/"),
		key:       key,
		namespace: namespace,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "rewards-ledger",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.Requests >= 20 && c.TotalFailures*2 >= c.Requests
			},
			// Rejections are the caller's fault and say nothing about availability.
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, ErrRejected)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("CIRCUIT_STATE_CHANGED", "breaker", name, "from", from.String(), "to", to.String())
			},
		}),
	}
}

// TrackOnce records an event the ledger deduplicates by eventId. A conflict
// means the event is already recorded and counts as success.
func (c *Client) TrackOnce(ctx context.Context, userID, eventType, dedupeKey string, payload map[string]any) error {
	return c.post(ctx, rewardsPath, rewardRequest{
		EventID:  dedupeKey,
		UserID:   userID,
		DataType: eventType,
		Body:     payload,
	}, nil)
}

func (c *Client) Track(ctx context.Context, userID, eventType string, payload map[string]any) error {
	return c.post(ctx, rewardsPath, rewardRequest{
		UserID:   userID,
		DataType: eventType,
		Body:     payload,
	}, nil)
}

// RegisterUser enrolls a user and returns their access token.
func (c *Client) RegisterUser(ctx context.Context, userID, displayName, avatarRef string) (string, error) {
	props := map[string]string{"displayName": displayName}
	if avatarRef != "" {
		props["avatar"] = avatarRef
	}

	var resp userResponse
	if err := c.post(ctx, usersPath, userRequest{ID: userID, Tags: []string{"discord"}, Properties: props}, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", fmt.Errorf("ledger: register %s: empty token", userID)
	}
	return resp.Token, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	_, err := c.cb.Execute(func() (any, error) {
		return nil, c.roundTrip(ctx, path, body, out)
	})
	return err
}

func (c *Client) roundTrip(ctx context.Context, path string, body, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("ledger: encode %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("ledger: build %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+c.key)
	req.Header.Set("Scrimmage-Namespace", c.namespace)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ledger: post %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch {
	// Already tracked. Other endpoints report a conflict as a rejection.
	case resp.StatusCode == http.StatusConflict && path == rewardsPath:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%w: %s: status %d: %s", ErrRejected, path, resp.StatusCode, msg)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("ledger: %s: status %d", path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("ledger: decode %s: %w", path, err)
	}
	return nil
}
