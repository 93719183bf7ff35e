package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/booking-api/pkg/httputil"
)

type RateLimiterConfig struct {
	// Rate and Burst apply to each client IP separately.
	Rate  rate.Limit
	Burst int
	// ClientTTL is how long an idle client's bucket is kept; it starts full
	// again afterwards. Every request renews it. Defaults to ten minutes.
	ClientTTL time.Duration
}

type RateLimiter struct {
	config  RateLimiterConfig
	clients *gocache.Cache
}

func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.ClientTTL <= 0 {
		config.ClientTTL = 10 * time.Minute
	}
	return &RateLimiter{
		config:  config,
		clients: gocache.New(config.ClientTTL, 2*config.ClientTTL),
	}
}

func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.limiterFor(c.ClientIP()).Allow() {
			c.Header("Retry-After", strconv.Itoa(rl.retryAfter()))
			httputil.RespondWithMessage(c, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) limiterFor(client string) *rate.Limiter {
	if v, ok := rl.clients.Get(client); ok {
		l := v.(*rate.Limiter)
		rl.clients.Set(client, l, gocache.DefaultExpiration)
		return l
	}
	l := rate.NewLimiter(rl.config.Rate, rl.config.Burst)
	if err := rl.clients.Add(client, l, gocache.DefaultExpiration); err != nil {
		// lost the race to another request from the same client
		if existing, ok := rl.clients.Get(client); ok {
			return existing.(*rate.Limiter)
		}
	}
	return l
}

// retryAfter is the whole number of seconds one token takes to refill.
func (rl *RateLimiter) retryAfter() int {
	if rl.config.Rate <= 0 {
		return 1
	}
	secs := int(1 / float64(rl.config.Rate))
	if secs < 1 {
		return 1
	}
	return secs
}
