// Package cache is a small injected cache port for derived read models
// such as per-team balance aggregates. The cache is never the system of
// record: every ledger mutation reads through to the store and deletes
// the affected keys after commit. A process without Redis runs on the
// in-memory implementation with identical semantics.
package cache

import (
	"context"
	"time"
)

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

func TeamBalancesKey(teamID string) string {
	return "team:" + teamID + ":balances"
}

// NoOp satisfies Cache without storing anything. Tests use it to prove
// ledger correctness does not depend on caching.
type NoOp struct{}

func (NoOp) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, nil
}

func (NoOp) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return nil
}

func (NoOp) Delete(ctx context.Context, keys ...string) error {
	return nil
}

func (NoOp) Close() error {
	return nil
}
