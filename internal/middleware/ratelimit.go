package middleware

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"marketplace-auth/internal/model"
)

type clientLimiter struct {
	general  *rate.Limiter
	auth     *rate.Limiter
	lastSeen time.Time
}

const (
	defaultMaxClients = 10_000
	clientIdleTimeout = 10 * time.Minute
	sweepInterval     = time.Minute
)

type RateLimitMiddleware struct {
	generalRPM int
	authRPM    int
	resolver   *ClientIPResolver
	maxClients int
	mu         sync.Mutex
	clients    map[string]*clientLimiter
	lastSweep  time.Time
	now        func() time.Time
}

// NewRateLimitMiddleware builds per-client limiters. A non-positive generalRPM
// disables the general budget; the credential budget is always enforced.
// A nil resolver keys clients by the connection's peer address.
func NewRateLimitMiddleware(generalRPM int, authRPM int, resolver *ClientIPResolver) *RateLimitMiddleware {
	if authRPM <= 0 {
		authRPM = 10
	}

	return &RateLimitMiddleware{
		generalRPM: generalRPM,
		authRPM:    authRPM,
		resolver:   resolver,
		maxClients: defaultMaxClients,
		clients:    map[string]*clientLimiter{},
		now:        time.Now,
	}
}

func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := m.resolver.ClientIP(r)
		limiter := m.getLimiter(clientIP)

		target := limiter.general
		if isCredentialPath(r.URL.Path) {
			target = limiter.auth
		}

		if target != nil && !target.Allow() {
			w.Header().Set("Retry-After", "60")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(model.APIResponse{
				Success: false,
				Error: &model.APIError{
					Code:    "RATE_LIMITED",
					Message: "Too many requests",
				},
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// isCredentialPath reports whether the route accepts a password and so gets
// the stricter per-client budget.
func isCredentialPath(path string) bool {
	path = strings.ToLower(strings.TrimRight(path, "/"))
	switch path {
	case "/api/v1/auth/login", "/api/v1/auth/register", "/api/v1/auth/change-password":
		return true
	}
	return false
}

func (m *RateLimitMiddleware) getLimiter(clientIP string) *clientLimiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if now.Sub(m.lastSweep) >= sweepInterval {
		m.sweepLocked(now)
	}

	if limiter, exists := m.clients[clientIP]; exists {
		limiter.lastSeen = now
		return limiter
	}

	if len(m.clients) >= m.maxClients {
		m.sweepLocked(now)
	}
	for len(m.clients) >= m.maxClients {
		m.evictOldestLocked()
	}

	var general *rate.Limiter
	if m.generalRPM > 0 {
		general = rate.NewLimiter(rate.Every(time.Minute/time.Duration(m.generalRPM)), m.generalRPM)
	}
	auth := rate.NewLimiter(rate.Every(time.Minute/time.Duration(m.authRPM)), m.authRPM)
	created := &clientLimiter{general: general, auth: auth, lastSeen: now}
	m.clients[clientIP] = created

	return created
}

func (m *RateLimitMiddleware) sweepLocked(now time.Time) {
	m.lastSweep = now
	cutoff := now.Add(-clientIdleTimeout)
	for ip, limiter := range m.clients {
		if limiter.lastSeen.Before(cutoff) {
			delete(m.clients, ip)
		}
	}
}

func (m *RateLimitMiddleware) evictOldestLocked() {
	var (
		oldestIP   string
		oldestSeen time.Time
	)
	for ip, limiter := range m.clients {
		if oldestIP == "" || limiter.lastSeen.Before(oldestSeen) {
			oldestIP = ip
			oldestSeen = limiter.lastSeen
		}
	}
	delete(m.clients, oldestIP)
}
