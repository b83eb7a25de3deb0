// Package session implements the transfer engine: the upload, download,
// and copy orchestrators that generate jobs, spawn worker tasks, dispatch
// each job through a schedule and protocol driver, recover from per-job
// failure by re-queueing, record progress, and hand the result off to the
// exnode assembler.
package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	monkit "gopkg.in/spacemonkeygo/monkit.v2"

	"github.com/lorsio/lors/assemble"
	"github.com/lorsio/lors/depot"
	"github.com/lorsio/lors/driver"
	"github.com/lorsio/lors/errkinds"
	"github.com/lorsio/lors/internal/workq"
	"github.com/lorsio/lors/metaregistry"
	"github.com/lorsio/lors/schedule"
	"github.com/lorsio/lors/viz"
)

var mon = monkit.Package()

// ProgressFunc is called after each chunk transfer completes successfully.
// Direction is "U" or "D".
type ProgressFunc func(direction Direction, host string, offset, length int64)

// Session ties together a protocol registry, a depot table, a metadata
// registry, and the transfer engine's concurrency and telemetry machinery.
// One Session is used for one upload, download, or copy at a time per the
// schedule contract (schedules are not safe to share across concurrent
// transfers); a process may hold many Sessions.
type Session struct {
	ID       string
	Registry *driver.Registry
	Depots   depot.Table
	Meta     metaregistry.Registry
	Cfg      Config
	Log      *zap.Logger
	Viz      *viz.Sink

	assembler *assemble.Assembler
	records   recordLog
	mkdirMu   sync.Mutex

	// inflight tracks running Upload/Download/Copy calls so Close can
	// drain them instead of tearing the session down underneath a
	// transfer still in progress.
	inflight workq.Group
}

// New builds a Session. log may be nil (defaults to a no-op logger). If
// cfg.VizURL is set, New attempts to connect to the visualization sink;
// connection failures are logged and otherwise ignored, per the sink's
// best-effort contract.
func New(id string, registry *driver.Registry, depots depot.Table, meta metaregistry.Registry, cfg Config, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	cfg = cfg.withDefaults()

	return &Session{
		ID:        id,
		Registry:  registry,
		Depots:    depots,
		Meta:      meta,
		Cfg:       cfg,
		Log:       log,
		Viz:       viz.Dial(context.Background(), cfg.VizURL, log),
		assembler: assemble.New(meta, log),
	}
}

// Close stops the session from accepting new transfers, waits for any
// Upload/Download/Copy call already in progress to finish, then releases
// the visualization sink connection, if any.
func (s *Session) Close() {
	s.inflight.Close()
	s.inflight.Wait()
	if s.Viz != nil {
		s.Viz.Close()
	}
}

// enter registers one Upload/Download/Copy call as in-flight, returning an
// error wrapping errkinds.SessionClosed if Close has already begun
// draining. The caller must defer the returned func's companion
// s.inflight.Done (via leave) on every return path.
func (s *Session) enter() (func(), error) {
	if !s.inflight.Start() {
		return nil, errkinds.SessionClosed.New("session %q is closing", s.ID)
	}
	return s.inflight.Done, nil
}

// Records returns a snapshot of every chunk transfer recorded so far.
func (s *Session) Records() []TransferRecord {
	return s.records.snapshot()
}

// depotFor resolves a depot by access point, the lookup Read/Copy calls
// need to recover a depot's driver config from an allocation's Location.
func (s *Session) depotFor(accessPoint string) (depot.Depot, error) {
	d, ok := s.Depots[accessPoint]
	if !ok {
		return depot.Depot{}, errkinds.UnknownBackend.New("no depot known for access point %q", accessPoint)
	}
	return d, nil
}

// withTimeout derives a context bounded by the session's configured
// per-call timeout. A zero timeout disables the bound.
func (s *Session) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.Cfg.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.Cfg.Timeout)
}

// attemptTracker bounds the number of times a given job key may be
// re-enqueued after a transient failure, per the design's per-job attempt
// counter (RETRY_LIMIT, default 3).
type attemptTracker struct {
	mu       sync.Mutex
	attempts map[int64]int
}

func newAttemptTracker() *attemptTracker {
	return &attemptTracker{attempts: make(map[int64]int)}
}

// bump increments the attempt count for key and reports whether the
// caller may still retry (count stayed within schedule.RetryLimit).
func (t *attemptTracker) bump(key int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.attempts[key]++
	return t.attempts[key] <= schedule.RetryLimit
}

func nowMicros() int64 {
	return time.Now().UnixNano() / int64(time.Microsecond)
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
