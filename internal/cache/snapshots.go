// internal/cache/snapshots.go
package cache

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/blake2b"
)

// DefaultTTL is how long a composed snapshot may be served.
const DefaultTTL = 7 * 24 * time.Hour

// Outcome tells the caller how a snapshot was produced.
type Outcome string

const (
	OutcomeHit       Outcome = "hit"
	OutcomeMiss      Outcome = "miss"
	OutcomeRefreshed Outcome = "refreshed"
)

// Clock abstracts time so expiry is testable.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

// Entry is one cached snapshot.
type Entry struct {
	StoreID   uint64    `json:"store_id"`
	Payload   []byte    `json:"payload"`
	Digest    string    `json:"digest"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the entry must not be served at now.
func (e *Entry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Store persists snapshot entries. Get returns nil, nil on a miss.
type Store interface {
	Get(ctx context.Context, storeID uint64) (*Entry, error)
	Put(ctx context.Context, e *Entry) error
	Delete(ctx context.Context, storeID uint64) error
}

// ComputeFunc builds a fresh payload.
type ComputeFunc func(ctx context.Context) ([]byte, error)

// Snapshots is the TTL-gated snapshot cache.
type Snapshots struct {
	store Store
	clock Clock
	ttl   time.Duration
	spawn func(func())
}

// Option configures Snapshots.
type Option func(*Snapshots)

func WithClock(c Clock) Option { return func(s *Snapshots) { s.clock = c } }

func WithTTL(ttl time.Duration) Option { return func(s *Snapshots) { s.ttl = ttl } }

// WithSpawn replaces how background writes are started. Tests pass a
// synchronous runner.
func WithSpawn(spawn func(func())) Option { return func(s *Snapshots) { s.spawn = spawn } }

func NewSnapshots(store Store, opts ...Option) *Snapshots {
	s := &Snapshots{
		store: store,
		clock: SystemClock,
		ttl:   DefaultTTL,
		spawn: func(f func()) { go f() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Digest is the hex blake2b-256 of a payload, used as the ETag.
func Digest(payload []byte) string {
	sum := blake2b.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// Get serves a live entry unless forceRefresh is set. Otherwise it computes
// a fresh payload; removing the stale entry and then storing the new one
// run as one background task and never fail the read.
func (s *Snapshots) Get(ctx context.Context, storeID uint64, forceRefresh bool, compute ComputeFunc) (*Entry, Outcome, error) {
	now := s.clock.Now()
	log := logrus.WithField("store_id", storeID)

	var existing *Entry
	if !forceRefresh {
		e, err := s.store.Get(ctx, storeID)
		if err != nil {
			log.WithError(err).Warn("Snapshot lookup failed, recomputing")
		} else if e != nil {
			if !e.Expired(now) {
				return e, OutcomeHit, nil
			}
			existing = e
		}
	}

	payload, err := compute(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("compute snapshot: %w", err)
	}

	fresh := &Entry{
		StoreID:   storeID,
		Payload:   payload,
		Digest:    Digest(payload),
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	stale := existing != nil
	bg := context.WithoutCancel(ctx)
	s.spawn(func() {
		if stale {
			if err := s.store.Delete(bg, storeID); err != nil {
				log.WithError(err).Warn("Failed to purge expired snapshot")
			}
		}
		if err := s.store.Put(bg, fresh); err != nil {
			log.WithError(err).Warn("Failed to store snapshot")
		}
	})

	outcome := OutcomeMiss
	if forceRefresh {
		outcome = OutcomeRefreshed
	}
	return fresh, outcome, nil
}

// Invalidate drops the cached snapshot of a store.
func (s *Snapshots) Invalidate(ctx context.Context, storeID uint64) error {
	return s.store.Delete(ctx, storeID)
}
