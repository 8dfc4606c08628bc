// Package snapshot provides rate-limited, immutable inventory snapshots.
//
// A Service wraps a remote inventory fetch behind a minimum-interval rate
// limiter: no two calls to the wrapped fetcher are ever issued closer
// together than the configured gap, regardless of caller concurrency. The
// limiter serializes callers with a mutex held across the wait, so the gap
// holds even under contention.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Kind tags a snapshot with the flow phase that requested it.
type Kind int

const (
	KindPre Kind = iota
	KindPost
	KindCheck
	KindWaystone
)

func (k Kind) String() string {
	switch k {
	case KindPre:
		return "pre"
	case KindPost:
		return "post"
	case KindCheck:
		return "check"
	case KindWaystone:
		return "waystone"
	default:
		return "unknown"
	}
}

// ItemRecord is one inventory item as returned by the remote source.
// Only the fields consumed by the diff engine and valuation are typed;
// everything else the source sends is dropped at decode time.
type ItemRecord struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	TypeLine  string `json:"typeLine"`
	BaseType  string `json:"baseType,omitempty"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
	StackSize int    `json:"stackSize,omitempty"`
	Rarity    string `json:"rarity,omitempty"`
}

// DisplayName returns the best human-readable name for the item.
func (r ItemRecord) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	if r.TypeLine != "" {
		return r.TypeLine
	}
	return r.BaseType
}

// Snapshot is an immutable point-in-time capture of the tracked inventory.
// Items preserve source order. Never mutate a snapshot after creation;
// share it freely instead.
type Snapshot struct {
	Items []ItemRecord
	Kind  Kind
	Taken time.Time
}

// Fetcher retrieves the current item collection for a subject.
// Implementations must not retry; failures propagate to the caller as-is.
type Fetcher interface {
	FetchInventory(ctx context.Context, subjectID, credential string) ([]ItemRecord, error)
}

// ErrNoFetcher is returned when the service was built without a fetcher.
var ErrNoFetcher = errors.New("snapshot: no fetcher configured")

// Service issues snapshots through a fetcher with a global minimum gap
// between remote calls.
type Service struct {
	mu         sync.Mutex
	fetcher    Fetcher
	minGap     time.Duration
	lastIssued time.Time
	credential string
	logger     *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewService creates a snapshot service. A minGap of zero disables rate
// limiting.
func NewService(fetcher Fetcher, minGap time.Duration, credential string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		fetcher:    fetcher,
		minGap:     minGap,
		credential: credential,
		logger:     logger.With("component", "snapshot"),
		now:        time.Now,
	}
}

// UpdateCredential swaps the auth credential. The limiter clock is
// deliberately untouched.
func (s *Service) UpdateCredential(token string) {
	s.mu.Lock()
	s.credential = token
	s.mu.Unlock()
}

// Take blocks until the minimum gap since the previous issued fetch has
// elapsed, then fetches the current inventory and wraps it in an immutable
// snapshot. The gap applies globally across all kinds.
func (s *Service) Take(ctx context.Context, subjectID string, kind Kind) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fetcher == nil {
		return nil, ErrNoFetcher
	}

	if !s.lastIssued.IsZero() {
		if wait := s.minGap - s.now().Sub(s.lastIssued); wait > 0 {
			s.logger.Debug("rate limit wait", "wait", wait, "kind", kind.String())
			timer := time.NewTimer(wait)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
	}
	s.lastIssued = s.now()

	items, err := s.fetcher.FetchInventory(ctx, subjectID, s.credential)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", kind, err)
	}

	snap := &Snapshot{
		Items: items,
		Kind:  kind,
		Taken: s.now(),
	}
	s.logger.Debug("snapshot taken", "kind", kind.String(), "items", len(items))
	return snap, nil
}
