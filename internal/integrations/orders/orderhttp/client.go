package orderhttp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/BearBump/OrderTrack/internal/integrations/orders"
	"github.com/BearBump/OrderTrack/pkg/retrier"
	"github.com/pkg/errors"
	"github.com/sony/gobreaker"
)

var ErrUnavailable = errors.New("order service unavailable")

type Client struct {
	baseURL string
	httpc   *http.Client
	cb      *gobreaker.CircuitBreaker
	retry   *retrier.Retrier
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpc = c }
}

func WithRetry(cfg retrier.Config) Option {
	return func(cl *Client) { cl.retry = retrier.New(withShouldRetry(cfg)) }
}

func New(baseURL string, timeout time.Duration, log *slog.Logger, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8090"
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	c := &Client{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: timeout},
		retry:   retrier.New(withShouldRetry(retrier.DefaultConfig())),
	}
	c.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "order-service",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// a missing order is a valid answer, not a failing dependency
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, orders.ErrOrderNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type orderResp struct {
	ID       uint64    `json:"id"`
	PlacedAt time.Time `json:"placed_at"`
}

// PlacementDate returns when the order was placed. Unknown orders yield orders.ErrOrderNotFound.
func (c *Client) PlacementDate(ctx context.Context, orderID uint64) (time.Time, error) {
	var placed time.Time
	err := c.retry.ExecuteWithContext(ctx, func(ctx context.Context) error {
		res, err := c.cb.Execute(func() (interface{}, error) {
			return c.fetch(ctx, orderID)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return errors.Wrap(ErrUnavailable, err.Error())
			}
			return err
		}
		placed = res.(time.Time)
		return nil
	})
	if err != nil {
		return time.Time{}, err
	}
	return placed, nil
}

func (c *Client) fetch(ctx context.Context, orderID uint64) (time.Time, error) {
	u, err := url.JoinPath(c.baseURL, "v1", "orders", fmt.Sprintf("%d", orderID))
	if err != nil {
		return time.Time{}, permanent(errors.Wrap(err, "build url"))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return time.Time{}, permanent(errors.Wrap(err, "new request"))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return time.Time{}, errors.Wrapf(orders.ErrOrderNotFound, "order %d", orderID)
	case resp.StatusCode/100 == 5:
		return time.Time{}, fmt.Errorf("order service http %d", resp.StatusCode)
	case resp.StatusCode/100 != 2:
		return time.Time{}, permanent(fmt.Errorf("order service http %d", resp.StatusCode))
	}

	var r orderResp
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return time.Time{}, permanent(errors.Wrap(err, "decode"))
	}
	if r.PlacedAt.IsZero() {
		return time.Time{}, permanent(errors.New("order service returned no placed_at"))
	}
	return r.PlacedAt.UTC(), nil
}

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

func permanent(err error) error { return permanentError{err: err} }

func withShouldRetry(cfg retrier.Config) retrier.Config {
	cfg.ShouldRetry = func(err error) bool {
		var p permanentError
		if errors.As(err, &p) || errors.Is(err, orders.ErrOrderNotFound) {
			return false
		}
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	return cfg
}
