package hackernews

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"

	"github.com/MrSnakeDoc/ideaboard/internal/logger"
	"github.com/MrSnakeDoc/ideaboard/internal/utils"
)

const maxResponseBytes = 1 << 20

// ErrUnavailable wraps every failure caused by the breaker being open.
var ErrUnavailable = errors.New("hacker news unavailable")

type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig trips after 5 calls with at least 60% failures and
// probes again a minute later.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

// Client reads the Hacker News Firebase API.
type Client struct {
	baseURL     string
	http        *http.Client
	cb          *gobreaker.CircuitBreaker
	concurrency int
	log         logger.Logger
}

func NewClient(baseURL string, timeout time.Duration, concurrency int, bc BreakerConfig, log logger.Logger) *Client {
	if concurrency < 1 {
		concurrency = 1
	}
	c := &Client{
		baseURL:     baseURL,
		http:        &http.Client{Timeout: timeout},
		concurrency: concurrency,
		log:         log,
	}
	c.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "hackernews",
		MaxRequests: bc.MaxRequests,
		Interval:    bc.Interval,
		Timeout:     bc.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < bc.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= bc.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()))
		},
		IsSuccessful: func(err error) bool {
			// a cancelled scan says nothing about the upstream
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return c
}

// TopStories returns up to limit ids from the front page ranking.
func (c *Client) TopStories(ctx context.Context, limit int) ([]int64, error) {
	var ids []int64
	if err := c.getJSON(ctx, "/topstories.json", &ids); err != nil {
		return nil, fmt.Errorf("failed to fetch top stories: %w", err)
	}
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// Item fetches one item. found is false when the API answers null.
func (c *Client) Item(ctx context.Context, id int64) (story Story, found bool, err error) {
	var s *Story
	if err := c.getJSON(ctx, "/item/"+strconv.FormatInt(id, 10)+".json", &s); err != nil {
		return Story{}, false, fmt.Errorf("failed to fetch item %d: %w", id, err)
	}
	if s == nil {
		return Story{}, false, nil
	}
	return *s, true, nil
}

// Stories fetches the top limit stories concurrently and keeps ranking
// order. Items that fail, are missing, dead, deleted or untitled are
// skipped; the scan only fails when the ranking itself cannot be read,
// the breaker opens or ctx ends.
func (c *Client) Stories(ctx context.Context, limit int) ([]Story, error) {
	ids, err := c.TopStories(ctx, limit)
	if err != nil {
		return nil, err
	}

	slots := make([]*Story, len(ids))
	var (
		mu     sync.Mutex
		failed int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			s, found, err := c.Item(gctx, id)
			switch {
			case errors.Is(err, ErrUnavailable), gctx.Err() != nil:
				return err
			case err != nil:
				mu.Lock()
				failed++
				mu.Unlock()
				c.log.Debug("skipping hacker news item",
					logger.Int64("id", id),
					logger.Error(err))
				return nil
			case !found || s.Dead || s.Deleted || s.Title == "":
				return nil
			}
			slots[i] = &s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}

	stories := make([]Story, 0, len(ids))
	for _, s := range slots {
		if s != nil {
			stories = append(stories, *s)
		}
	}
	if failed > 0 {
		c.log.Warn("some hacker news items could not be fetched",
			logger.Int("failed", failed),
			logger.Int("requested", len(ids)))
	}
	return stories, nil
}

func (c *Client) getJSON(ctx context.Context, path string, dst any) error {
	_, err := c.cb.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer utils.Close(resp.Body)

		if resp.StatusCode != http.StatusOK {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
			return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(dst); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		return nil, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
