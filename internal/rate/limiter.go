package rate

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Scope names the subject a failure counter is kept for.
type Scope string

const (
	ScopeEmail Scope = "email"
	ScopeIP    Scope = "ip"
)

const (
	emailKeyPrefix = "arl:"
	ipKeyPrefix    = "arli:"
)

// KEYS[1] counter, ARGV[1] window in ms. Returns {count, pttl}.
const recordScript = `
local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {n, redis.call("PTTL", KEYS[1])}
`

var (
	recordLua      = redis.NewScript(recordScript)
	errScriptReply = errors.New("unexpected script reply")
)

// Config holds login throttle tuning.
type Config struct {
	EnableIPThrottle bool
	MaxAttempts      int
	Cooldown         time.Duration
}

// Limiter counts failed logins per email and, optionally, per client IP in
// fixed Redis windows. A window opens on the first failure and lasts
// Cooldown.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{redis: redisClient, config: cfg}
}

type counter struct {
	scope Scope
	key   string
}

func (l *Limiter) counters(email, ip string) []counter {
	out := []counter{{ScopeEmail, emailKey(email)}}
	if l.config.EnableIPThrottle && ip != "" {
		out = append(out, counter{ScopeIP, ipKeyPrefix + ip})
	}
	return out
}

// Check returns a *LimitError once the email or IP has used its failure
// budget for the current window.
func (l *Limiter) Check(ctx context.Context, email, ip string) error {
	cs := l.counters(email, ip)
	pipe := l.redis.Pipeline()
	counts := make([]*redis.StringCmd, len(cs))
	ttls := make([]*redis.DurationCmd, len(cs))
	for i, c := range cs {
		counts[i] = pipe.Get(ctx, c.key)
		ttls[i] = pipe.PTTL(ctx, c.key)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return unavailable(err)
	}

	for i, c := range cs {
		n, err := counts[i].Int64()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return unavailable(err)
		}
		if n >= int64(l.config.MaxAttempts) {
			return &LimitError{Scope: c.scope, RetryAfter: ttls[i].Val()}
		}
	}
	return nil
}

// RecordFailure counts a failed attempt against every counter. It returns
// a *LimitError when this attempt went over budget.
func (l *Limiter) RecordFailure(ctx context.Context, email, ip string) error {
	var limited *LimitError
	for _, c := range l.counters(email, ip) {
		n, ttl, err := l.record(ctx, c.key)
		if err != nil {
			return err
		}
		if n > int64(l.config.MaxAttempts) && limited == nil {
			limited = &LimitError{Scope: c.scope, RetryAfter: ttl}
		}
	}
	if limited != nil {
		return limited
	}
	return nil
}

func (l *Limiter) record(ctx context.Context, key string) (int64, time.Duration, error) {
	res, err := recordLua.Run(ctx, l.redis, []string{key}, l.config.Cooldown.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, 0, unavailable(err)
	}
	if len(res) != 2 {
		return 0, 0, unavailable(errScriptReply)
	}
	return res[0], time.Duration(res[1]) * time.Millisecond, nil
}

// Reset clears the counters after a successful login.
func (l *Limiter) Reset(ctx context.Context, email, ip string) error {
	cs := l.counters(email, ip)
	keys := make([]string, len(cs))
	for i, c := range cs {
		keys[i] = c.key
	}
	if err := l.redis.Del(ctx, keys...).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func emailKey(email string) string {
	return emailKeyPrefix + strings.ToLower(strings.TrimSpace(email))
}
