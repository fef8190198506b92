// Package cache stores generated curve reports keyed by user and data
// snapshot. Reports are deterministic for a snapshot, so a hit can be
// served without recomputation.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/hyperengineering/digitaltwin/internal/types"
)

// Cache stores curve reports.
type Cache interface {
	// Get returns the cached report. ok is false on a miss.
	Get(ctx context.Context, userID, snapshotHash string) (out *types.DigitalTwinCurveOutput, ok bool, err error)
	Set(ctx context.Context, userID, snapshotHash string, out *types.DigitalTwinCurveOutput) error
	Close() error
}

// Key returns the cache key for a user's snapshot.
func Key(userID, snapshotHash string) string {
	return fmt.Sprintf("curve:%s:%s", userID, snapshotHash)
}

// SnapshotHash returns the hex sha256 of the snapshot's JSON encoding.
func SnapshotHash(data *types.AggregatedUserData) (string, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// Noop is used when no cache is configured. Every Get misses.
type Noop struct{}

func (Noop) Get(context.Context, string, string) (*types.DigitalTwinCurveOutput, bool, error) {
	return nil, false, nil
}

func (Noop) Set(context.Context, string, string, *types.DigitalTwinCurveOutput) error {
	return nil
}

func (Noop) Close() error { return nil }
