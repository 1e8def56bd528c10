package http

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

func bearer(c *gin.Context) (string, bool) {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

func AuthMiddleware(ident Identity) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, found := bearer(c)
		if !found {
			c.AbortWithStatusJSON(401, gin.H{"success": false, "error": "authorization_header_invalid"})
			return
		}

		user, err := ident.Resolve(c.Request.Context(), token)
		if err != nil {
			status, msg := statusFor(err)
			c.AbortWithStatusJSON(status, gin.H{"success": false, "error": msg})
			return
		}

		c.Set("user", user)
		c.Set("userID", user.ID)
		c.Next()
	}
}

// limiterIdle is how long a user's bucket survives without requests.
const limiterIdle = 10 * time.Minute

type userLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// limiters hands out one token bucket per user and forgets idle ones.
type limiters struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	byUser    map[string]*userLimiter
	lastSweep time.Time
	now       func() time.Time
}

func newLimiters(rps float64, burst int) *limiters {
	if rps <= 0 {
		return &limiters{limit: rate.Inf}
	}
	if burst < 1 {
		burst = 1
	}
	return &limiters{
		limit:  rate.Limit(rps),
		burst:  burst,
		byUser: map[string]*userLimiter{},
		now:    time.Now,
	}
}

func (l *limiters) get(userID string) *rate.Limiter {
	if l.limit == rate.Inf {
		return rate.NewLimiter(rate.Inf, 0)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= limiterIdle {
		for id, ul := range l.byUser {
			if now.Sub(ul.lastSeen) >= limiterIdle {
				delete(l.byUser, id)
			}
		}
		l.lastSweep = now
	}

	ul, ok := l.byUser[userID]
	if !ok {
		ul = &userLimiter{lim: rate.NewLimiter(l.limit, l.burst)}
		l.byUser[userID] = ul
	}
	ul.lastSeen = now
	return ul.lim
}

// rateLimit throttles mutations per authenticated user. Reads pass through.
func rateLimit(l *limiters) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet {
			c.Next()
			return
		}
		if !l.get(c.GetString("userID")).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"success": false, "error": "rate_limited"})
			return
		}
		c.Next()
	}
}
