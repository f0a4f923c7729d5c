// Package placement resolves the latest completed match placement of an
// in-game identifier from the match history API.
package placement

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	model "github.com/okian/podium/internal/domain/model"
	"github.com/okian/podium/pkg/logger"
	"github.com/okian/podium/pkg/metrics"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

const (
	defaultKeyHeader = "X-Api-Key"
	defaultName      = "placement-api"
	maxBodyBytes     = 1 << 20
	maxDetailBytes   = 256
)

// matchResponse is the body of a successful latest-match lookup.
type matchResponse struct {
	MatchID      string    `json:"match_id"`
	Placement    int       `json:"placement"`
	Participants int       `json:"participants"`
	CompletedAt  time.Time `json:"completed_at"`
}

// Client calls GET {base}/v1/{region}/players/{gameID}/matches/latest under
// a client-side rate limit and a circuit breaker.
type Client struct {
	base            *url.URL
	http            *http.Client
	apiKey          string
	keyHeader       string
	limiter         *rate.Limiter
	breakerSettings BreakerSettings
	breaker         *gobreaker.CircuitBreaker[model.PlacementResult]
	name            string
	now             func() time.Time
	logger          logger.Logger
}

// NewClient creates a client rooted at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, baseURL)
	}
	c := &Client{
		base:            u,
		http:            &http.Client{},
		keyHeader:       defaultKeyHeader,
		limiter:         rate.NewLimiter(rate.Inf, 0),
		breakerSettings: DefaultBreakerSettings(),
		name:            defaultName,
		now:             time.Now,
		logger:          logger.Get().Named("placement"),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.breaker = c.newBreaker()
	return c, nil
}

func (c *Client) newBreaker() *gobreaker.CircuitBreaker[model.PlacementResult] {
	s := c.breakerSettings
	metrics.UpdateBreakerState(c.name, stateToFloat(gobreaker.StateClosed))
	return gobreaker.NewCircuitBreaker[model.PlacementResult](gobreaker.Settings{
		Name:        c.name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= s.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn(context.Background(), "placement breaker state change",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
			metrics.UpdateBreakerState(name, stateToFloat(to))
			metrics.RecordBreakerTransition(name, from.String(), to.String())
		},
		// Only upstream outages trip the breaker; a missing player or a
		// rejected identifier says nothing about API health.
		IsSuccessful: func(err error) bool {
			return !errors.Is(err, errUpstreamUnavailable)
		},
	})
}

// LatestPlacement resolves gameID in region. It never returns an error;
// the outcome is encoded in the result status.
func (c *Client) LatestPlacement(ctx context.Context, region, gameID string) model.PlacementResult {
	res, err := c.breaker.Execute(func() (model.PlacementResult, error) {
		r := c.lookup(ctx, region, gameID)
		if r.Status == model.StatusTransientError && ctx.Err() == nil {
			return r, errUpstreamUnavailable
		}
		return r, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return c.result(gameID, model.StatusTransientError, "circuit open")
	}
	return res
}

func (c *Client) lookup(ctx context.Context, region, gameID string) model.PlacementResult {
	if err := c.limiter.Wait(ctx); err != nil {
		return c.result(gameID, model.StatusTransientError, "rate limiter: "+err.Error())
	}

	endpoint := c.base.JoinPath("v1", region, "players", gameID, "matches", "latest")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return c.result(gameID, model.StatusPermanentError, "build request: "+err.Error())
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(c.keyHeader, c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.RecordPlacementLatency(float64(time.Since(start).Milliseconds()))
	if err != nil {
		return c.result(gameID, model.StatusTransientError, err.Error())
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return c.result(gameID, model.StatusTransientError, "read body: "+err.Error())
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return c.decode(gameID, body)
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNoContent:
		return c.result(gameID, model.StatusNotFound, "no recent match")
	case resp.StatusCode == http.StatusTooManyRequests:
		r := c.result(gameID, model.StatusRateLimited, detail(resp.StatusCode, body))
		r.RetryAfter = ParseRetryAfter(resp.Header.Get("Retry-After"), c.now())
		return r
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusRequestTimeout:
		return c.result(gameID, model.StatusTransientError, detail(resp.StatusCode, body))
	default:
		return c.result(gameID, model.StatusPermanentError, detail(resp.StatusCode, body))
	}
}

func (c *Client) decode(gameID string, body []byte) model.PlacementResult {
	var m matchResponse
	if err := json.Unmarshal(body, &m); err != nil {
		return c.result(gameID, model.StatusPermanentError, "invalid payload: "+err.Error())
	}
	if m.Placement < 1 || (m.Participants > 0 && m.Placement > m.Participants) {
		return c.result(gameID, model.StatusPermanentError,
			fmt.Sprintf("invalid payload: placement %d of %d", m.Placement, m.Participants))
	}
	r := c.result(gameID, model.StatusResolved, "")
	r.Placement = m.Placement
	r.MatchID = m.MatchID
	if !m.CompletedAt.IsZero() {
		r.ObservedAt = m.CompletedAt.UTC()
	}
	return r
}

func (c *Client) result(gameID string, status model.PlacementStatus, detail string) model.PlacementResult {
	return model.PlacementResult{
		Identifier: gameID,
		Status:     status,
		ObservedAt: c.now().UTC(),
		Detail:     detail,
	}
}

// ParseRetryAfter reads a Retry-After header given either as delay seconds
// or as an HTTP date. Unparseable or past values yield zero.
func ParseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

func detail(status int, body []byte) string {
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxDetailBytes {
		msg = msg[:maxDetailBytes]
	}
	if msg == "" {
		return "status " + strconv.Itoa(status)
	}
	return "status " + strconv.Itoa(status) + ": " + msg
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// BreakerState reports the breaker state as a string.
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}
