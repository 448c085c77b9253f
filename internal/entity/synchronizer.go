package entity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ecoroute/ecoroute-go/internal/api"
	"github.com/ecoroute/ecoroute-go/internal/push"
)

// SnapshotAPI is the slice of the gateway the synchronizer pulls from.
// Satisfied by *api.Client; tests provide fakes.
type SnapshotAPI interface {
	ListBins(ctx context.Context) ([]api.Bin, error)
	ListRoutes(ctx context.Context) ([]api.Route, error)
}

// Stream is the push transport. Satisfied by *push.Channel; tests provide
// fakes that feed scripted events and connect notifications.
type Stream interface {
	Run(ctx context.Context, events chan<- push.Event, connects chan<- struct{}) error
}

// Kind discriminates entity collections in updates.
type Kind string

const (
	KindBin   Kind = "bin"
	KindRoute Kind = "route"
)

// Update is the notification fanned out to subscribers after a snapshot
// is applied to a cache. Exactly one of Bin or Route is set, matching Kind.
type Update struct {
	Kind  Kind
	ID    string
	Bin   *api.Bin
	Route *api.Route
}

// Subscription is a registered interest in cache changes. Unsubscribe is
// idempotent.
type Subscription struct {
	id   uuid.UUID
	s    *Synchronizer
	once sync.Once
}

// Unsubscribe removes the subscription. Safe to call more than once.
func (sub *Subscription) Unsubscribe() {
	sub.once.Do(func() {
		sub.s.mu.Lock()
		defer sub.s.mu.Unlock()

		delete(sub.s.subs, sub.id)
	})
}

// Synchronizer reconciles two independent update sources — pull snapshots
// from the gateway and push events from the stream — into the bin and
// route caches, and fans out change notifications to subscribers.
// Correctness depends solely on the cache's revision rule, never on which
// source happened to run last.
type Synchronizer struct {
	snapshots SnapshotAPI
	stream    Stream
	logger    *slog.Logger

	bins   *Cache[api.Bin]
	routes *Cache[api.Route]

	mu   sync.Mutex
	subs map[uuid.UUID]func(Update)

	// pulls counts completed recovery pulls; tests assert exactly one
	// per reconnect.
	pulls atomic.Int64
}

// NewSynchronizer creates a synchronizer over the given snapshot source
// and push stream.
func NewSynchronizer(snapshots SnapshotAPI, stream Stream, logger *slog.Logger) *Synchronizer {
	if logger == nil {
		logger = slog.Default()
	}

	return &Synchronizer{
		snapshots: snapshots,
		stream:    stream,
		logger:    logger,
		bins:      NewCache(func(b api.Bin) string { return b.ID }, func(b api.Bin) time.Time { return b.UpdatedAt }),
		routes:    NewCache(func(r api.Route) string { return r.ID }, func(r api.Route) time.Time { return r.CreatedAt }),
		subs:      make(map[uuid.UUID]func(Update)),
	}
}

// Run drives the stream and applies events until ctx is canceled. Every
// established connection — the first included — schedules exactly one
// fresh pull, reconstituting whatever the stream missed while down. The
// stream itself carries no replay, so this pull is a required recovery
// step, not an optimization. Returns nil on cancellation.
func (s *Synchronizer) Run(ctx context.Context) error {
	events := make(chan push.Event)
	connects := make(chan struct{}, 1)

	streamDone := make(chan error, 1)
	go func() {
		streamDone <- s.stream.Run(ctx, events, connects)
	}()

	for {
		select {
		case <-ctx.Done():
			<-streamDone
			return nil

		case err := <-streamDone:
			if err != nil && ctx.Err() == nil {
				return fmt.Errorf("entity: stream terminated: %w", err)
			}

			return nil

		case <-connects:
			if err := s.Pull(ctx); err != nil {
				// The stream is up even though the pull failed; cached
				// state stays last-known-good and push events still apply.
				s.logger.Warn("recovery pull failed",
					slog.String("error", err.Error()),
				)
			}

		case ev := <-events:
			s.handleEvent(ev)
		}
	}
}

// Pull fetches full snapshots of bins and routes in parallel and merges
// them under the revision rule. Entries updated by push while the fetch
// was in flight are not clobbered.
func (s *Synchronizer) Pull(ctx context.Context) error {
	var (
		bins   []api.Bin
		routes []api.Route
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		bins, err = s.snapshots.ListBins(gctx)

		return err
	})

	g.Go(func() error {
		var err error
		routes, err = s.snapshots.ListRoutes(gctx)

		return err
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("entity: pulling snapshots: %w", err)
	}

	var applied int

	for i := range bins {
		if s.bins.Apply(bins[i]) {
			applied++
			s.notify(Update{Kind: KindBin, ID: bins[i].ID, Bin: &bins[i]})
		}
	}

	for i := range routes {
		if s.routes.Apply(routes[i]) {
			applied++
			s.notify(Update{Kind: KindRoute, ID: routes[i].ID, Route: &routes[i]})
		}
	}

	s.pulls.Add(1)

	s.logger.Info("snapshot pull complete",
		slog.Int("bins", len(bins)),
		slog.Int("routes", len(routes)),
		slog.Int("applied", applied),
	)

	return nil
}

// handleEvent decodes and applies one push event. Malformed or stale
// events are dropped with the cache left unchanged — availability over
// strict freshness.
func (s *Synchronizer) handleEvent(ev push.Event) {
	switch ev.Name {
	case push.EventBinUpdate:
		var bin api.Bin
		if err := json.Unmarshal(ev.Data, &bin); err != nil || bin.ID == "" {
			s.logger.Warn("dropping malformed bin event")
			return
		}

		if s.bins.Apply(bin) {
			s.notify(Update{Kind: KindBin, ID: bin.ID, Bin: &bin})
		}

	case push.EventRouteUpdate:
		var route api.Route
		if err := json.Unmarshal(ev.Data, &route); err != nil || route.ID == "" {
			s.logger.Warn("dropping malformed route event")
			return
		}

		if s.routes.Apply(route) {
			s.notify(Update{Kind: KindRoute, ID: route.ID, Route: &route})
		}

	default:
		s.logger.Debug("ignoring unknown stream event",
			slog.String("event", ev.Name),
		)
	}
}

// Subscribe registers a change callback and returns its subscription
// handle. Notification is synchronous fan-out to all current subscribers:
// the callback runs on the synchronizer's event goroutine and must not
// block.
func (s *Synchronizer) Subscribe(fn func(Update)) *Subscription {
	sub := &Subscription{id: uuid.New(), s: s}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.subs[sub.id] = fn

	return sub
}

// notify dispatches an update to every current subscriber.
func (s *Synchronizer) notify(u Update) {
	s.mu.Lock()
	fns := make([]func(Update), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(u)
	}
}

// Bin returns the cached snapshot for a bin id.
func (s *Synchronizer) Bin(id string) (api.Bin, bool) {
	return s.bins.Get(id)
}

// Bins returns all cached bins sorted by bin identifier.
func (s *Synchronizer) Bins() []api.Bin {
	bins := s.bins.All()
	slices.SortFunc(bins, func(a, b api.Bin) int {
		return strings.Compare(a.BinID, b.BinID)
	})

	return bins
}

// Route returns the cached snapshot for a route id.
func (s *Synchronizer) Route(id string) (api.Route, bool) {
	return s.routes.Get(id)
}

// Routes returns all cached routes, newest first.
func (s *Synchronizer) Routes() []api.Route {
	routes := s.routes.All()
	slices.SortFunc(routes, func(a, b api.Route) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	return routes
}

// PullCount reports how many snapshot pulls have completed. Used by
// status displays and tests.
func (s *Synchronizer) PullCount() int64 {
	return s.pulls.Load()
}
