package cache

import (
	"context"
	"log/slog"
	"time"
)

// Layer is one level of the tiered cache.
type Layer interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Tiered checks the in-process L1 first and the optional shared L2 second.
// L2 failures are logged and treated as misses; the caller falls back to the database.
type Tiered struct {
	l1  *Memory
	l2  Layer
	ttl time.Duration
}

// NewTiered creates a tiered cache. l2 may be nil.
func NewTiered(l1 *Memory, l2 Layer, ttl time.Duration) *Tiered {
	if l1 == nil {
		l1 = NewMemory(0, ttl)
	}
	return &Tiered{l1: l1, l2: l2, ttl: ttl}
}

func (t *Tiered) Get(ctx context.Context, key string) (string, bool) {
	if value, ok, _ := t.l1.Get(ctx, key); ok {
		return value, true
	}
	if t.l2 == nil {
		return "", false
	}

	value, ok, err := t.l2.Get(ctx, key)
	if err != nil {
		slog.Warn("shared cache read failed", slog.String("error", err.Error()))
		return "", false
	}
	if ok {
		_ = t.l1.Set(ctx, key, value, t.ttl)
	}
	return value, ok
}

func (t *Tiered) Set(ctx context.Context, key, value string) {
	_ = t.l1.Set(ctx, key, value, t.ttl)
	if t.l2 == nil {
		return
	}
	if err := t.l2.Set(ctx, key, value, t.ttl); err != nil {
		slog.Warn("shared cache write failed", slog.String("error", err.Error()))
	}
}

func (t *Tiered) Delete(ctx context.Context, key string) {
	_ = t.l1.Delete(ctx, key)
	if t.l2 == nil {
		return
	}
	if err := t.l2.Delete(ctx, key); err != nil {
		slog.Warn("shared cache delete failed", slog.String("error", err.Error()))
	}
}

// GetShared reads a value that any instance may change. With an L2 configured
// it reads L2 only, so a write on one instance is seen by every other one.
func (t *Tiered) GetShared(ctx context.Context, key string) (string, bool) {
	if t.l2 == nil {
		return t.Get(ctx, key)
	}
	value, ok, err := t.l2.Get(ctx, key)
	if err != nil {
		slog.Warn("shared cache read failed", slog.String("error", err.Error()))
		return "", false
	}
	return value, ok
}

// SetShared is Set for values read with GetShared; it never fills L1 while an L2 exists.
func (t *Tiered) SetShared(ctx context.Context, key, value string) {
	if t.l2 == nil {
		t.Set(ctx, key, value)
		return
	}
	if err := t.l2.Set(ctx, key, value, t.ttl); err != nil {
		slog.Warn("shared cache write failed", slog.String("error", err.Error()))
	}
}

// CleanupExpired drops expired L1 entries. Redis expires its keys itself.
func (t *Tiered) CleanupExpired() int {
	return t.l1.CleanupExpired()
}

func (t *Tiered) Close() error {
	if t.l2 == nil {
		return nil
	}
	return t.l2.Close()
}
