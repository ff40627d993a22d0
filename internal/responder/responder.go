package responder

import (
	"math/rand/v2"
	"strings"
	"sync"
	"time"
)

// Responder picks reply text. Safe for concurrent use.
type Responder struct {
	set RuleSet

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures a Responder.
type Option func(*Responder)

// WithRuleSet replaces the built-in reply table.
func WithRuleSet(set RuleSet) Option {
	return func(r *Responder) { r.set = set }
}

// WithRand injects the random source used for pool picks and delays.
func WithRand(rng *rand.Rand) Option {
	return func(r *Responder) {
		if rng != nil {
			r.rng = rng
		}
	}
}

func New(opts ...Option) *Responder {
	r := &Responder{
		set: DefaultRuleSet(),
		rng: rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x6f6d6e69)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Text returns the reply for a user text message: the first matching rule, or
// a random generic reply.
func (r *Responder) Text(text string) string {
	lowered := strings.ToLower(text)
	for _, rule := range r.set.Rules {
		if rule.Matches(lowered) {
			return rule.Reply
		}
	}
	return r.pick(r.set.Generic)
}

// Image returns a random acknowledgement for an uploaded image.
func (r *Responder) Image() string {
	return r.pick(r.set.Image)
}

// Delay returns a uniformly random duration in [min, max].
func (r *Responder) Delay(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return min + time.Duration(r.rng.Int64N(int64(max-min)+1))
}

func (r *Responder) pick(pool []string) string {
	if len(pool) == 0 {
		return ""
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return pool[r.rng.IntN(len(pool))]
}
