package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/fathima-sithara/messaging-service/internal/domain"
)

// Client resolves user ids against the external user-service. Responses are
// cached in redis with a short TTL and the upstream call sits behind a
// circuit breaker so a flapping user-service cannot stall conversation
// listings.
type Client struct {
	base     string
	http     *http.Client
	breaker  *gobreaker.CircuitBreaker
	cache    *redis.Client
	presence *PresenceMirror
	ttl      time.Duration
	prefix   string
	log      *zap.SugaredLogger
}

func NewClient(base string, timeout, cacheTTL time.Duration, cache *redis.Client, presence *PresenceMirror, prefix string, log *zap.SugaredLogger) *Client {
	tr := &http.Transport{
		DialContext:     (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
		MaxIdleConns:    32,
		IdleConnTimeout: 90 * time.Second,
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "user-directory",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
	})
	return &Client{
		base:     base,
		http:     &http.Client{Transport: tr, Timeout: timeout},
		breaker:  cb,
		cache:    cache,
		presence: presence,
		ttl:      cacheTTL,
		prefix:   prefix,
		log:      log,
	}
}

func (c *Client) cacheKey(userID string) string {
	return fmt.Sprintf("%s:dir:%s", c.prefix, userID)
}

func (c *Client) Lookup(ctx context.Context, userID string) (*domain.UserSummary, error) {
	if u := c.fromCache(ctx, userID); u != nil {
		c.attachStatus(ctx, u)
		return u, nil
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	u := out.(*domain.UserSummary)

	if b, err := json.Marshal(u); err == nil && c.cache != nil {
		_ = c.cache.Set(ctx, c.cacheKey(userID), b, c.ttl).Err()
	}
	c.attachStatus(ctx, u)
	return u, nil
}

func (c *Client) fromCache(ctx context.Context, userID string) *domain.UserSummary {
	if c.cache == nil {
		return nil
	}
	b, err := c.cache.Get(ctx, c.cacheKey(userID)).Bytes()
	if err != nil {
		return nil
	}
	var u domain.UserSummary
	if err := json.Unmarshal(b, &u); err != nil {
		return nil
	}
	return &u
}

func (c *Client) fetch(ctx context.Context, userID string) (*domain.UserSummary, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/internal/users/"+userID, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("directory returned %d", resp.StatusCode)
	}

	var body struct {
		Data domain.UserSummary `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	if body.Data.ID == "" {
		body.Data.ID = userID
	}
	return &body.Data, nil
}

func (c *Client) attachStatus(ctx context.Context, u *domain.UserSummary) {
	if c.presence == nil {
		return
	}
	if st, err := c.presence.Status(ctx, u.ID); err == nil && st != "" {
		u.Status = st
	}
}
