// Package tracker follows a driver's position along an assigned collection
// route. The stop sequence is fixed for the assignment's lifetime; the
// per-stop bin state is always read live from the entity cache, so fill
// and status reflect the latest synchronized data. Only an explicit
// Advance call moves the cursor — there is no automatic arrival detection.
package tracker

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/ecoroute/ecoroute-go/internal/api"
)

// ErrNoActiveRoute is returned when no assignment is loaded. A display
// state, not a failure.
var ErrNoActiveRoute = errors.New("tracker: no active route")

// BinReader supplies live bin snapshots by id. Satisfied by
// *entity.Synchronizer.
type BinReader interface {
	Bin(id string) (api.Bin, bool)
}

// Stop is the tracker's view of one scheduled collection point: the fixed
// assignment data plus the live bin snapshot, when the cache has one.
type Stop struct {
	Index    int
	Total    int
	BinID    string
	Location api.Location
	Bin      *api.Bin // nil when the cache has no snapshot yet
}

// Tracker holds the progress cursor for one route assignment. The cursor
// is monotonically non-decreasing and resets only when a new assignment
// is loaded.
type Tracker struct {
	bins   BinReader
	logger *slog.Logger

	mu     sync.Mutex
	route  *api.Route
	cursor int
}

// New creates a Tracker with no assignment loaded.
func New(bins BinReader, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}

	return &Tracker{bins: bins, logger: logger}
}

// Load installs a new route assignment and resets the cursor to the first
// stop. An empty route is treated as no assignment.
func (t *Tracker) Load(route *api.Route) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if route == nil || len(route.Stops) == 0 {
		t.route = nil
		t.cursor = 0

		return
	}

	t.route = route
	t.cursor = 0

	t.logger.Info("route assignment loaded",
		slog.String("route_id", route.ID),
		slog.Int("stops", len(route.Stops)),
	)
}

// CurrentStop returns the stop at the cursor with its live bin state.
func (t *Tracker) CurrentStop() (Stop, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.route == nil {
		return Stop{}, ErrNoActiveRoute
	}

	return t.stopAtLocked(t.cursor), nil
}

// Advance moves the cursor to the next stop. The cursor clamps at the
// last index: advancing there is a no-op reported as complete=true — a
// terminal signal, never an error. Returns the stop now under the cursor.
func (t *Tracker) Advance() (Stop, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.route == nil {
		return Stop{}, false, ErrNoActiveRoute
	}

	last := len(t.route.Stops) - 1
	if t.cursor >= last {
		t.logger.Info("route complete", slog.String("route_id", t.route.ID))

		return t.stopAtLocked(last), true, nil
	}

	t.cursor++

	return t.stopAtLocked(t.cursor), false, nil
}

// Progress reports the cursor position and total stop count.
func (t *Tracker) Progress() (current, total int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.route == nil {
		return 0, 0, ErrNoActiveRoute
	}

	return t.cursor, len(t.route.Stops), nil
}

// stopAtLocked builds the Stop view for an index. Caller holds mu.
func (t *Tracker) stopAtLocked(idx int) Stop {
	rs := t.route.Stops[idx]

	stop := Stop{
		Index:    idx,
		Total:    len(t.route.Stops),
		BinID:    rs.BinID,
		Location: rs.Location,
	}

	if bin, ok := t.bins.Bin(rs.BinID); ok {
		stop.Bin = &bin
	}

	return stop
}
