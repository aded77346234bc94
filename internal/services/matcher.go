// Package services – Matcher
//
// This file implements trigger matching. A trigger holds one or more
// pipe-separated regular expressions; they are compiled case-insensitively,
// cached per Matcher and evaluated in intent order. The first enabled intent
// with a matching pattern wins.
//
// Observability: patterns that fail to compile are logged once per cache
// entry and counted in konsul_intent_pattern_errors_total.

package services

import (
	"context"
	"fmt"
	"regexp"
	"sync"

	"github.com/rs/zerolog"

	"github.com/konsul-app/konsul-backend/internal/domain"
)

// maxCachedPatterns bounds the compiled-pattern cache; it is reset when full.
const maxCachedPatterns = 4096

type compiled struct {
	re  *regexp.Regexp
	err error
}

// Matcher selects the intent whose trigger matches a user message.
//
// Compiled patterns (and compile failures) are cached per Matcher, so a
// Matcher is meant to be shared. It is safe for concurrent use.
type Matcher struct {
	mu    sync.RWMutex
	cache map[string]compiled
}

// NewMatcher returns an empty Matcher.
func NewMatcher() *Matcher {
	return &Matcher{cache: make(map[string]compiled)}
}

// DetectIntent returns the first enabled intent, in the order given, with at
// least one trigger pattern matching userMessage. Patterns are matched
// case-insensitively against the raw message. A pattern that does not compile
// never matches and is logged; sibling patterns and later intents are still
// evaluated.
func (m *Matcher) DetectIntent(ctx context.Context, userMessage string, intents []domain.Intent) *domain.Intent {
	for i := range intents {
		in := &intents[i]
		if !in.Enabled {
			continue
		}
		for _, p := range domain.SplitTrigger(in.Trigger) {
			c, fresh := m.compile(p)
			if c.err != nil {
				patternErrors.Inc()
				if fresh {
					zerolog.Ctx(ctx).Warn().
						Err(c.err).
						Str("intent_id", in.ID).
						Str("pattern", p).
						Msg("skipping trigger pattern that does not compile")
				}
				continue
			}
			if c.re.MatchString(userMessage) {
				return in
			}
		}
	}
	return nil
}

// compile returns the cached case-insensitive regexp for pattern. fresh is true
// when this call performed the compilation.
func (m *Matcher) compile(pattern string) (compiled, bool) {
	m.mu.RLock()
	c, ok := m.cache[pattern]
	m.mu.RUnlock()
	if ok {
		return c, false
	}

	re, err := regexp.Compile("(?i)" + pattern)
	c = compiled{re: re, err: err}
	m.mu.Lock()
	if len(m.cache) >= maxCachedPatterns {
		m.cache = make(map[string]compiled)
	}
	m.cache[pattern] = c
	m.mu.Unlock()
	return c, true
}

// ValidateTrigger checks that trigger holds at least one pattern and that every
// pattern compiles.
func ValidateTrigger(trigger string) error {
	patterns := domain.SplitTrigger(trigger)
	if len(patterns) == 0 {
		return fmt.Errorf("%w: at least one pattern is required", ErrInvalidTrigger)
	}
	for _, p := range patterns {
		if _, err := regexp.Compile("(?i)" + p); err != nil {
			return fmt.Errorf("%w: pattern %q: %v", ErrInvalidTrigger, p, err)
		}
	}
	return nil
}
