package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sony/gobreaker"

	"github.com/scrimmage/discord-tracker-service/config"
	"github.com/scrimmage/discord-tracker-service/internal/domain/model"
	"github.com/scrimmage/discord-tracker-service/internal/service"
	"github.com/scrimmage/discord-tracker-service/internal/service/dto"
)

// Floor for a 429 without a usable retry_after.
const minRateLimitWait = 50 * time.Millisecond

var (
	_ service.Fetcher              = (*Client)(nil)
	_ service.InteractionResponder = (*Client)(nil)
	_ service.CommandStore         = (*Client)(nil)
)

// APIError is a non-2xx answer from the REST API.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("discord: %s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// Client is the bot's REST client on top of a discordgo session that is never
// opened: only its request layer and per-bucket rate limiter are used. Calls
// share one circuit breaker; rate limits and missing objects never count
// against it.
type Client struct {
	session *discordgo.Session
	cb      *gobreaker.CircuitBreaker
	logger  *slog.Logger

	appMu sync.Mutex
	appID string
}

func NewClient(cfg *config.Config, logger *slog.Logger) (*Client, error) {
	return newClient(cfg.Discord.APIURL, cfg.Discord.Token, cfg.Discord.RequestTimeout, logger)
}

// newClient builds the client. A non-empty baseURL replaces discordgo's API
// root, which is how tests and API proxies are wired in.
func newClient(baseURL, token string, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	logger = logger.With("component", "discord_rest")

	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord: new session: %w", err)
	}
	// [RATE_LIMIT] 429s surface as *RateLimitError and are waited out in call,
	// bounded by the caller's context.
	session.ShouldRetryOnRateLimit = false
	session.UserAgent = "DiscordBot (https://scrimmage.co, 1.0)"
	session.Client = &http.Client{Timeout: timeout}
	if baseURL != "" {
		to, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("discord: api url %q: %w", baseURL, err)
		}
		session.Client.Transport = &rebaseTransport{from: discordgo.EndpointAPI, to: to, next: http.DefaultTransport}
	}

	return &Client{
		session: session,
		logger:  logger,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "discord-rest",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
			// A missing object or a rate limit is an answer, not an outage.
			IsSuccessful: func(err error) bool {
				var rl *discordgo.RateLimitError
				return err == nil || errors.Is(err, model.ErrNotFound) || errors.As(err, &rl)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("CIRCUIT_STATE_CHANGED", "breaker", name, "from", from.String(), "to", to.String())
			},
		}),
	}, nil
}

func (c *Client) FetchMessage(ctx context.Context, channelID, messageID string) (*model.Message, error) {
	raw, err := c.request(ctx, http.MethodGet,
		discordgo.EndpointChannelMessage(channelID, messageID), nil,
		discordgo.EndpointChannelMessage(channelID, ""))
	if err != nil {
		return nil, err
	}
	var m dto.MessageV1
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("discord: decode message %s: %w", messageID, err)
	}
	return m.ToDomain(raw), nil
}

func (c *Client) FetchUser(ctx context.Context, userID string) (*model.User, error) {
	raw, err := c.request(ctx, http.MethodGet, discordgo.EndpointUser(userID), nil, discordgo.EndpointUsers)
	if err != nil {
		return nil, err
	}
	var u dto.UserV1
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("discord: decode user %s: %w", userID, err)
	}
	if user := u.ToDomain(raw); user != nil {
		return user, nil
	}
	return nil, model.ErrNotFound
}

func (c *Client) FetchMember(ctx context.Context, guildID, userID string) (*model.Member, error) {
	raw, err := c.request(ctx, http.MethodGet,
		discordgo.EndpointGuildMember(guildID, userID), nil,
		discordgo.EndpointGuildMember(guildID, ""))
	if err != nil {
		return nil, err
	}
	var m dto.MemberV1
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("discord: decode member %s/%s: %w", guildID, userID, err)
	}
	return m.ToDomain(guildID, raw), nil
}

func (c *Client) RespondEphemeral(ctx context.Context, in *model.Interaction, content string) error {
	return c.call(ctx, func(opts ...discordgo.RequestOption) error {
		return c.session.InteractionRespond(
			&discordgo.Interaction{ID: in.ID, Token: in.Token},
			&discordgo.InteractionResponse{
				Type: discordgo.InteractionResponseChannelMessageWithSource,
				Data: &discordgo.InteractionResponseData{
					Content: content,
					Flags:   discordgo.MessageFlagsEphemeral,
				},
			},
			opts...,
		)
	})
}

func (c *Client) ListCommands(ctx context.Context) ([]model.Command, error) {
	appID, err := c.applicationID(ctx)
	if err != nil {
		return nil, err
	}
	var remote []*discordgo.ApplicationCommand
	err = c.call(ctx, func(opts ...discordgo.RequestOption) (err error) {
		remote, err = c.session.ApplicationCommands(appID, "", opts...)
		return err
	})
	if err != nil {
		return nil, err
	}
	cmds := make([]model.Command, 0, len(remote))
	for _, rc := range remote {
		cmds = append(cmds, model.Command{
			ID:          rc.ID,
			Name:        rc.Name,
			Description: rc.Description,
			Type:        int(rc.Type),
		})
	}
	return cmds, nil
}

func (c *Client) CreateCommand(ctx context.Context, cmd model.Command) error {
	appID, err := c.applicationID(ctx)
	if err != nil {
		return err
	}
	return c.call(ctx, func(opts ...discordgo.RequestOption) error {
		_, err := c.session.ApplicationCommandCreate(appID, "", toApplicationCommand(cmd), opts...)
		return err
	})
}

func (c *Client) EditCommand(ctx context.Context, id string, cmd model.Command) error {
	appID, err := c.applicationID(ctx)
	if err != nil {
		return err
	}
	return c.call(ctx, func(opts ...discordgo.RequestOption) error {
		_, err := c.session.ApplicationCommandEdit(appID, "", id, toApplicationCommand(cmd), opts...)
		return err
	})
}

func (c *Client) DeleteCommand(ctx context.Context, id string) error {
	appID, err := c.applicationID(ctx)
	if err != nil {
		return err
	}
	endpoint := discordgo.EndpointApplicationGlobalCommand(appID, id)
	_, err = c.request(ctx, http.MethodDelete, endpoint, nil, endpoint)
	return err
}

// applicationID resolves the bot's application id once and caches it.
func (c *Client) applicationID(ctx context.Context) (string, error) {
	c.appMu.Lock()
	defer c.appMu.Unlock()

	if c.appID != "" {
		return c.appID, nil
	}
	endpoint := discordgo.EndpointAPI + "oauth2/applications/@me"
	raw, err := c.request(ctx, http.MethodGet, endpoint, nil, endpoint)
	if err != nil {
		return "", fmt.Errorf("discord: resolve application: %w", err)
	}
	var app struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &app); err != nil || app.ID == "" {
		return "", fmt.Errorf("discord: resolve application: bad body %q", raw)
	}
	c.appID = app.ID
	return c.appID, nil
}

func toApplicationCommand(cmd model.Command) *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        cmd.Name,
		Description: cmd.Description,
		Type:        discordgo.ApplicationCommandType(cmd.Type),
	}
}

// request performs a raw call and returns the body so domain payloads keep
// the original JSON.
func (c *Client) request(ctx context.Context, method, endpoint string, data any, bucket string) ([]byte, error) {
	var body []byte
	err := c.call(ctx, func(opts ...discordgo.RequestOption) (err error) {
		body, err = c.session.RequestWithBucketID(method, endpoint, data, bucket, opts...)
		return err
	})
	return body, err
}

// call runs fn through the breaker and waits out rate limits until ctx ends.
func (c *Client) call(ctx context.Context, fn func(opts ...discordgo.RequestOption) error) error {
	for {
		_, err := c.cb.Execute(func() (any, error) {
			return nil, translate(fn(discordgo.WithContext(ctx)))
		})

		var rl *discordgo.RateLimitError
		if !errors.As(err, &rl) {
			return err
		}
		wait := max(rl.RetryAfter, minRateLimitWait)
		rateLimitedTotal.Inc()
		c.logger.Warn("DISCORD_RATE_LIMITED", "url", rl.URL, "retry_after_ms", wait.Milliseconds())

		select {
		case <-ctx.Done():
		case <-time.After(wait):
		}
		if ctx.Err() != nil {
			return fmt.Errorf("discord: rate limited on %s: %w", rl.URL, ctx.Err())
		}
	}
}

// translate maps discordgo REST failures onto the package's errors.
func translate(err error) error {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) || restErr.Response == nil {
		return err
	}

	method, path := "", ""
	if restErr.Request != nil {
		method, path = restErr.Request.Method, restErr.Request.URL.Path
	}
	if restErr.Response.StatusCode == http.StatusNotFound {
		return fmt.Errorf("discord: %s %s: %w", method, path, model.ErrNotFound)
	}
	body := restErr.ResponseBody
	if len(body) > 1024 {
		body = body[:1024]
	}
	return &APIError{Method: method, Path: path, Status: restErr.Response.StatusCode, Body: string(body)}
}

// rebaseTransport points discordgo's fixed API root at another base URL.
type rebaseTransport struct {
	from string
	to   *url.URL
	next http.RoundTripper
}

func (t *rebaseTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	rest, ok := strings.CutPrefix(req.URL.String(), t.from)
	if !ok {
		return t.next.RoundTrip(req)
	}
	target, err := t.to.Parse(rest)
	if err != nil {
		return nil, fmt.Errorf("discord: rebase %s: %w", req.URL, err)
	}
	out := req.Clone(req.Context())
	out.URL = target
	out.Host = target.Host
	return t.next.RoundTrip(out)
}
