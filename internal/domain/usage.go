package domain

import (
	"context"
	"sync"
)

type encodingUsageKey struct{}

// EncodingUsage collects encoder token usage for a single compile request.
// The handler puts a pointer into the context before calling the service;
// encoders write to it, the handler reads it for response headers.
// Encoders run concurrently, so writes are serialized.
type EncodingUsage struct {
	mu          sync.Mutex
	totalTokens int
	used        bool
}

// NewContextWithUsage returns a context with an encoding usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *EncodingUsage) {
	u := &EncodingUsage{}
	return context.WithValue(ctx, encodingUsageKey{}, u), u
}

// UsageFromContext extracts the usage collector from context. Returns nil if not set.
func UsageFromContext(ctx context.Context) *EncodingUsage {
	u, _ := ctx.Value(encodingUsageKey{}).(*EncodingUsage)
	return u
}

// AddTokens records consumed tokens. A cache hit records zero tokens but still marks usage.
func (u *EncodingUsage) AddTokens(n int) {
	if u == nil {
		return
	}
	u.mu.Lock()
	u.totalTokens += n
	u.used = true
	u.mu.Unlock()
}

// TotalTokens returns the tokens recorded so far.
func (u *EncodingUsage) TotalTokens() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.totalTokens
}

// Used reports whether any encoder ran for the request.
func (u *EncodingUsage) Used() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.used
}
