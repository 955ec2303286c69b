package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const defaultMaxEntries = 10000

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter allows limit requests per window for each client IP, with a
// burst of limit. At most maxEntries IPs are tracked; the least recently seen
// is evicted first.
type IPRateLimiter struct {
	mu         sync.Mutex
	limit      rate.Limit
	burst      int
	maxEntries int
	entries    map[string]*limiterEntry
	now        func() time.Time
}

func NewIPRateLimiter(limit int, window time.Duration) *IPRateLimiter {
	return NewIPRateLimiterWithMaxEntries(limit, window, defaultMaxEntries)
}

func NewIPRateLimiterWithMaxEntries(limit int, window time.Duration, maxEntries int) *IPRateLimiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	return &IPRateLimiter{
		limit:      rate.Every(window / time.Duration(limit)),
		burst:      limit,
		maxEntries: maxEntries,
		entries:    map[string]*limiterEntry{},
		now:        time.Now,
	}
}

func (rl *IPRateLimiter) Middleware(message string) func(http.Handler) http.Handler {
	if message == "" {
		message = "Rate limit exceeded"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r.RemoteAddr)
			if ip == "" {
				ip = "unknown"
			}
			if !rl.allow(ip) {
				writeError(w, r, http.StatusTooManyRequests, "RATE_LIMITED", message)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (rl *IPRateLimiter) allow(ip string) bool {
	now := rl.now()
	rl.mu.Lock()
	entry, ok := rl.entries[ip]
	if !ok {
		if len(rl.entries) >= rl.maxEntries {
			rl.evictOldest()
		}
		entry = &limiterEntry{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.entries[ip] = entry
	}
	entry.lastSeen = now
	rl.mu.Unlock()
	return entry.limiter.AllowN(now, 1)
}

func (rl *IPRateLimiter) evictOldest() {
	var oldestIP string
	var oldest time.Time
	for ip, entry := range rl.entries {
		if oldestIP == "" || entry.lastSeen.Before(oldest) {
			oldestIP = ip
			oldest = entry.lastSeen
		}
	}
	delete(rl.entries, oldestIP)
}

func (rl *IPRateLimiter) tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.entries)
}

func clientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
