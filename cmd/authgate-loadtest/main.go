// Command authgate-loadtest measures the authenticate and session hydrate
// pipelines against Redis (or an in-process miniredis).
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"text/tabwriter"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	"github.com/MrEthical07/authgate"
	"github.com/MrEthical07/authgate/identity"
)

type options struct {
	users       int
	concurrency int
	ops         int
	redisAddr   string
	revokeRatio float64
}

type principal struct {
	token     string
	sessionID string
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "authgate-loadtest:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	var o options
	fs := pflag.NewFlagSet("authgate-loadtest", pflag.ContinueOnError)
	fs.IntVar(&o.users, "users", 10000, "users to seed, one credential and one session each")
	fs.IntVar(&o.concurrency, "concurrency", 256, "concurrent workers")
	fs.IntVar(&o.ops, "ops", 200000, "operations per phase")
	fs.StringVar(&o.redisAddr, "redis-addr", os.Getenv("REDIS_ADDR"), "redis address; miniredis when empty")
	fs.Float64Var(&o.revokeRatio, "revoke-ratio", 0.01, "fraction of credentials revoked before measuring")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if o.users <= 0 || o.concurrency <= 0 || o.ops <= 0 {
		return errors.New("users, concurrency and ops must be > 0")
	}
	if o.revokeRatio < 0 || o.revokeRatio > 1 {
		return errors.New("revoke-ratio must be within [0, 1]")
	}

	client, closeRedis, err := dialRedis(o.redisAddr, out)
	if err != nil {
		return err
	}
	defer closeRedis()

	cfg := authgate.DefaultConfig()
	cfg.Token.Secret = []byte(strings.Repeat("l", 32))
	cfg.Audit.Enabled = false
	store := identity.NewMemoryStore()

	engine, err := authgate.New().
		WithConfig(cfg).
		WithRedis(client).
		WithIdentityLookup(store).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	ctx := context.Background()
	principals, revoked, err := seed(ctx, engine, store, o, out)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	pick := func(r *rand.Rand) principal { return principals[r.Intn(len(principals))] }
	auth := runPhase(o.ops, o.concurrency, func(r *rand.Rand) error {
		_, err := engine.Authenticate(ctx, pick(r).token)
		return err
	})
	hydrate := runPhase(o.ops, o.concurrency, func(r *rand.Rand) error {
		s, err := engine.HydrateSession(ctx, pick(r).sessionID)
		if err == nil && s == nil {
			return authgate.ErrSessionRequired
		}
		return err
	})

	fmt.Fprintf(out, "revoked %d of %d credentials\n\n", revoked, len(principals))
	writeReport(out, map[string]phaseResult{"authenticate": auth, "hydrate": hydrate})
	return nil
}

func dialRedis(addr string, out io.Writer) (redis.UniversalClient, func(), error) {
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		fmt.Fprintf(out, "using redis at %s\n", addr)
		return client, func() { _ = client.Close() }, nil
	}
	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("start miniredis: %w", err)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	fmt.Fprintf(out, "using miniredis at %s\n", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

func seed(ctx context.Context, engine *authgate.Engine, store *identity.MemoryStore, o options, out io.Writer) ([]principal, int, error) {
	start := time.Now()
	principals := make([]principal, o.users)
	for i := range principals {
		u := authgate.UserRecord{
			UserID: fmt.Sprintf("u-%d", i),
			Email:  fmt.Sprintf("user%d@example.com", i),
			Role:   authgate.RoleUser,
			Plan:   "free",
			Status: authgate.StatusActive,
		}
		store.Put(u)

		cred, err := engine.IssueDefault(authgate.Payload{UserID: u.UserID, Email: u.Email, Role: u.Role, Plan: u.Plan})
		if err != nil {
			return nil, 0, err
		}
		s, err := engine.StartSession(ctx, u.UserID)
		if err != nil {
			return nil, 0, err
		}
		principals[i] = principal{token: cred.Token, sessionID: s.SessionID}
	}

	revoked := int(float64(o.users) * o.revokeRatio)
	for _, p := range principals[:revoked] {
		if err := engine.RevokeCredential(ctx, p.token); err != nil {
			return nil, 0, err
		}
	}
	fmt.Fprintf(out, "seeded %d users in %s\n", o.users, time.Since(start).Round(time.Millisecond))
	return principals, revoked, nil
}

// phaseResult summarizes one measured phase. Failures are grouped by
// error kind code.
type phaseResult struct {
	elapsed  time.Duration
	samples  []time.Duration
	failures map[string]int
}

func (r phaseResult) failed() int {
	n := 0
	for _, c := range r.failures {
		n += c
	}
	return n
}

func (r phaseResult) throughput() float64 {
	if r.elapsed <= 0 {
		return 0
	}
	return float64(len(r.samples)) / r.elapsed.Seconds()
}

// runPhase runs op ops times across concurrency workers. Each worker keeps
// its own samples; they are merged and sorted once the phase ends.
func runPhase(ops, concurrency int, op func(*rand.Rand) error) phaseResult {
	type workerResult struct {
		samples  []time.Duration
		failures map[string]int
	}

	var (
		next    atomic.Int64
		wg      sync.WaitGroup
		results = make([]workerResult, concurrency)
	)
	start := time.Now()
	for w := range results {
		wg.Add(1)
		go func(res *workerResult, seed int64) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed))
			res.failures = map[string]int{}
			for next.Add(1) <= int64(ops) {
				t0 := time.Now()
				err := op(r)
				res.samples = append(res.samples, time.Since(t0))
				if err != nil {
					res.failures[authgate.KindOf(err).Code()]++
				}
			}
		}(&results[w], start.UnixNano()+int64(w))
	}
	wg.Wait()

	out := phaseResult{elapsed: time.Since(start), failures: map[string]int{}}
	for _, res := range results {
		out.samples = append(out.samples, res.samples...)
		for code, n := range res.failures {
			out.failures[code] += n
		}
	}
	slices.Sort(out.samples)
	return out
}

// quantile reads q (0..1) from sorted samples using the nearest lower rank.
func quantile(sorted []time.Duration, q float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	switch {
	case q <= 0:
		return sorted[0]
	case q >= 1:
		return sorted[len(sorted)-1]
	}
	return sorted[int(float64(len(sorted)-1)*q)]
}

func writeReport(out io.Writer, phases map[string]phaseResult) {
	names := make([]string, 0, len(phases))
	for name := range phases {
		names = append(names, name)
	}
	slices.Sort(names)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "phase\tops\tfailed\tops/s\tp50\tp95\tp99\t")
	for _, name := range names {
		r := phases[name]
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.0f\t%s\t%s\t%s\t\n",
			name, len(r.samples), r.failed(), r.throughput(),
			quantile(r.samples, 0.50).Round(time.Microsecond),
			quantile(r.samples, 0.95).Round(time.Microsecond),
			quantile(r.samples, 0.99).Round(time.Microsecond))
	}
	_ = tw.Flush()

	for _, name := range names {
		r := phases[name]
		codes := make([]string, 0, len(r.failures))
		for code := range r.failures {
			codes = append(codes, code)
		}
		slices.Sort(codes)
		for _, code := range codes {
			fmt.Fprintf(out, "%s failures %s: %d\n", name, code, r.failures[code])
		}
	}
}
