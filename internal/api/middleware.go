package api

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fathima-sithara/messaging-service/internal/auth"
)

// RequireAuth resolves the bearer token to a user id and stores it in
// Locals. Session issuance is external; only validation happens here.
func RequireAuth(jv *auth.Validator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := auth.ParseBearer(c.Get("Authorization"))
		if err != nil {
			// Websocket clients pass the token as a query param because
			// browsers cannot set headers on upgrade requests.
			token = c.Query("token")
			if token == "" {
				return fail(c, fiber.StatusUnauthorized, "missing auth", err)
			}
		}
		userID, err := jv.Validate(token)
		if err != nil {
			return fail(c, fiber.StatusUnauthorized, "invalid token", err)
		}
		c.Locals("user_id", userID)
		return c.Next()
	}
}

type IPRateLimiter struct {
	visitors sync.Map
	rps      rate.Limit
	burst    int
	log      *zap.SugaredLogger
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix nanos; read by the cleanup goroutine
}

func NewIPRateLimiter(perMinute int, log *zap.SugaredLogger) *IPRateLimiter {
	l := &IPRateLimiter{
		rps:   rate.Limit(float64(perMinute) / 60.0),
		burst: 5,
		log:   log,
	}
	go l.cleanupVisitors()
	return l
}

func (l *IPRateLimiter) getLimiter(ip string) *rate.Limiter {
	fresh := &visitor{limiter: rate.NewLimiter(l.rps, l.burst)}
	v, _ := l.visitors.LoadOrStore(ip, fresh)
	vi := v.(*visitor)
	vi.lastSeen.Store(time.Now().UnixNano())
	return vi.limiter
}

func (l *IPRateLimiter) cleanupVisitors() {
	for {
		time.Sleep(time.Minute)
		cutoff := time.Now().Add(-5 * time.Minute).UnixNano()
		l.visitors.Range(func(k, v interface{}) bool {
			if v.(*visitor).lastSeen.Load() < cutoff {
				l.visitors.Delete(k)
			}
			return true
		})
	}
}

func (l *IPRateLimiter) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ip := c.IP()
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
		if !l.getLimiter(ip).Allow() {
			l.log.Warnw("rate limit exceeded", "ip", ip, "path", c.Path())
			return fail(c, fiber.StatusTooManyRequests, "rate limit exceeded", nil)
		}
		return c.Next()
	}
}
