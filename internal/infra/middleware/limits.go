package middleware

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"mindhub/internal/domain"
)

// UserLimiter enforces per-user request and token budgets. Requests use a
// token bucket; tokens use a fixed one-minute window that resets lazily.
type UserLimiter struct {
	mu              sync.Mutex
	users           map[string]*userBucket
	requestsPerMin  int
	tokensPerMin    int
	now             func() time.Time
	lastCleanup     time.Time
	cleanupInterval time.Duration
}

type userBucket struct {
	limiter     *rate.Limiter
	tokensUsed  int
	windowStart time.Time
	lastSeen    time.Time
}

// NewUserLimiter creates a limiter with the given per-minute budgets.
func NewUserLimiter(requestsPerMin, tokensPerMin int) *UserLimiter {
	return &UserLimiter{
		users:           make(map[string]*userBucket),
		requestsPerMin:  requestsPerMin,
		tokensPerMin:    tokensPerMin,
		now:             time.Now,
		cleanupInterval: 5 * time.Minute,
	}
}

func (l *UserLimiter) bucket(userID string) *userBucket {
	b, ok := l.users[userID]
	if !ok {
		b = &userBucket{
			limiter:     rate.NewLimiter(rate.Limit(l.requestsPerMin)/60.0, l.requestsPerMin),
			windowStart: l.now(),
		}
		l.users[userID] = b
	}
	return b
}

// AllowRequest reports whether userID may make another request this minute.
func (l *UserLimiter) AllowRequest(userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.cleanup()
	b := l.bucket(userID)
	b.lastSeen = l.now()
	return b.limiter.Allow()
}

// ConsumeTokens records n estimated tokens against userID's minute window.
// It returns false when the budget is exhausted; the window resets lazily
// one minute after it was opened.
func (l *UserLimiter) ConsumeTokens(userID string, n int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.bucket(userID)
	now := l.now()
	b.lastSeen = now

	if now.Sub(b.windowStart) >= time.Minute {
		b.windowStart = now
		b.tokensUsed = 0
	}
	if b.tokensUsed+n > l.tokensPerMin {
		return false
	}
	b.tokensUsed += n
	return true
}

// cleanup drops buckets idle for over ten minutes. Caller holds l.mu.
func (l *UserLimiter) cleanup() {
	now := l.now()
	if now.Sub(l.lastCleanup) < l.cleanupInterval {
		return
	}
	l.lastCleanup = now
	for id, b := range l.users {
		if now.Sub(b.lastSeen) > 10*time.Minute {
			delete(l.users, id)
		}
	}
}

// CostLedger tracks per-user spend against daily and monthly caps.
// Windows roll over lazily when a new day or month begins.
type CostLedger struct {
	mu           sync.Mutex
	users        map[string]*costEntry
	dailyLimit   float64
	monthlyLimit float64
	now          func() time.Time
}

type costEntry struct {
	day        time.Time // midnight of the current daily window
	month      time.Time // first of the current monthly window
	dailyUSD   float64
	monthlyUSD float64
}

// NewCostLedger creates a ledger with the given USD caps.
func NewCostLedger(dailyLimit, monthlyLimit float64) *CostLedger {
	return &CostLedger{
		users:        make(map[string]*costEntry),
		dailyLimit:   dailyLimit,
		monthlyLimit: monthlyLimit,
		now:          time.Now,
	}
}

func (c *CostLedger) entry(userID string) *costEntry {
	e, ok := c.users[userID]
	if !ok {
		e = &costEntry{}
		c.users[userID] = e
	}

	now := c.now()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	if !e.day.Equal(day) {
		e.day = day
		e.dailyUSD = 0
	}
	if !e.month.Equal(month) {
		e.month = month
		e.monthlyUSD = 0
	}
	return e
}

// Check returns domain.ErrCostLimit when userID has exhausted either cap.
func (c *CostLedger) Check(userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entry(userID)
	if e.dailyUSD >= c.dailyLimit {
		return domain.WrapOp("CostLedger.Check", domain.ErrCostLimit)
	}
	if e.monthlyUSD >= c.monthlyLimit {
		return domain.WrapOp("CostLedger.Check", domain.ErrCostLimit)
	}
	return nil
}

// Record adds costUSD to userID's daily and monthly totals.
func (c *CostLedger) Record(userID string, costUSD float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entry(userID)
	e.dailyUSD += costUSD
	e.monthlyUSD += costUSD
}

// Usage returns userID's current daily and monthly spend in USD.
func (c *CostLedger) Usage(userID string) (daily, monthly float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entry(userID)
	return e.dailyUSD, e.monthlyUSD
}
