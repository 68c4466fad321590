// Package usage provides the process-wide usage tracker: per-tenant
// admission counters keyed by calendar buckets.
package usage

import (
	"sync"
	"time"

	"github.com/q360-insights/research-portal/internal/model"
	"github.com/q360-insights/research-portal/pkg/metrics"
)

const (
	hourBucketLayout = "2006-01-02_15"
	dayBucketLayout  = "2006-01-02"
)

// Policy resolves a tenant's admission limit and reset period. Demo-class
// tenants get a small hourly budget; everyone else a daily one.
type Policy struct {
	DemoTenants   map[string]struct{}
	DemoLimit     int
	DemoPeriod    model.Period
	DefaultLimit  int
	DefaultPeriod model.Period
}

// DefaultPolicy returns the standard tenant-class rules: 30/hour for demo
// accounts, 300/day for everyone else.
func DefaultPolicy() Policy {
	return Policy{
		DemoTenants: map[string]struct{}{
			"demo":  {},
			"demo2": {},
		},
		DemoLimit:     30,
		DemoPeriod:    model.PeriodHour,
		DefaultLimit:  300,
		DefaultPeriod: model.PeriodDay,
	}
}

// Resolve returns the (limit, period) pair for a tenant.
func (p Policy) Resolve(tenantID string) (int, model.Period) {
	if _, ok := p.DemoTenants[tenantID]; ok {
		return p.DemoLimit, p.DemoPeriod
	}
	return p.DefaultLimit, p.DefaultPeriod
}

type counterKey struct {
	tenantID string
	bucket   string
}

// Tracker holds process-wide admission counters shared by all sessions.
// Counters are in-memory only: a process restart resets them.
type Tracker struct {
	policy Policy
	now    func() time.Time

	mu       sync.Mutex
	counters map[counterKey]int
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the tracker's time source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// NewTracker creates a tracker with the given policy.
func NewTracker(policy Policy, opts ...Option) *Tracker {
	t := &Tracker{
		policy:   policy,
		now:      time.Now,
		counters: make(map[counterKey]int),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func bucketFor(period model.Period, now time.Time) string {
	if period == model.PeriodHour {
		return now.Format(hourBucketLayout)
	}
	return now.Format(dayBucketLayout)
}

// CheckAndAdmit decides whether a request from the tenant may proceed right
// now and records it if so. The read-compare-increment is a single critical
// section: two concurrent calls at the limit boundary resolve to exactly one
// admission.
func (t *Tracker) CheckAndAdmit(tenantID string) model.Decision {
	limit, period := t.policy.Resolve(tenantID)
	key := counterKey{tenantID: tenantID, bucket: bucketFor(period, t.now())}

	t.mu.Lock()
	count := t.counters[key]
	admitted := count < limit
	if admitted {
		count++
		t.counters[key] = count
	}
	buckets := len(t.counters)
	t.mu.Unlock()

	metrics.RecordUsageDecision(tenantID, string(period), admitted)
	metrics.UsageBucketsActive.Set(float64(buckets))

	return model.Decision{
		Admitted: admitted,
		Count:    count,
		Limit:    limit,
		Period:   period,
	}
}

// Peek returns the current count for a tenant without admitting anything.
func (t *Tracker) Peek(tenantID string) model.Decision {
	limit, period := t.policy.Resolve(tenantID)
	key := counterKey{tenantID: tenantID, bucket: bucketFor(period, t.now())}

	t.mu.Lock()
	count := t.counters[key]
	t.mu.Unlock()

	return model.Decision{
		Admitted: count < limit,
		Count:    count,
		Limit:    limit,
		Period:   period,
	}
}

// Sweep drops counters for past buckets and returns how many were removed.
// The original system kept them forever; retention here is explicit and
// driven by a ticker in main.
func (t *Tracker) Sweep() int {
	now := t.now()

	t.mu.Lock()
	removed := 0
	for key := range t.counters {
		_, period := t.policy.Resolve(key.tenantID)
		if key.bucket != bucketFor(period, now) {
			delete(t.counters, key)
			removed++
		}
	}
	buckets := len(t.counters)
	t.mu.Unlock()

	metrics.UsageBucketsActive.Set(float64(buckets))
	return removed
}

// Len returns the number of live counter buckets.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.counters)
}
