// Package toggle implements the optimistic two-state action engine behind
// follow/unfollow and like/unlike buttons. A toggle applies its state
// transition to the UI synchronously, confirms it against the engagement
// service, and rolls back to the pre-action snapshot if the confirmation
// fails. One controller owns the state of exactly one entity.
package toggle

import (
	"context"
	"sync/atomic"

	"github.com/tessera-dev/tessera/pkg/metrics"
	"github.com/tessera-dev/tessera/pkg/reactive"
)

// Status is the server-confirmed state of a toggleable entity: the boolean
// plus its aggregate counter (follower count, like count).
type Status struct {
	Active bool `json:"active"`
	Count  int  `json:"count"`
}

// Service is the engagement boundary. Implementations are transport-specific
// adapters; the controller never knows whether it is talking REST, a live
// socket, or an in-process fake.
type Service interface {
	Activate(ctx context.Context, entityID string) (Status, error)
	Deactivate(ctx context.Context, entityID string) (Status, error)
	Status(ctx context.Context, entityID string) (Status, error)
}

// Kind names a toggle action pair and carries its fixed user-facing failure
// strings.
type Kind struct {
	Name          string // metrics label, e.g. "follow"
	ActivateErr   string
	DeactivateErr string
	FetchErr      string
}

// Predefined kinds for the two social actions the engine ships with.
var (
	Follow = Kind{
		Name:          "follow",
		ActivateErr:   "Failed to follow user",
		DeactivateErr: "Failed to unfollow user",
		FetchErr:      "Failed to load follow status",
	}
	Like = Kind{
		Name:          "like",
		ActivateErr:   "Failed to like post",
		DeactivateErr: "Failed to unlike post",
		FetchErr:      "Failed to load like status",
	}
)

// snapshot captures state immediately before an optimistic mutation.
// Discarded on success, applied on failure.
type snapshot struct {
	active bool
	count  int
}

// Controller drives the optimistic toggle state for one entity.
//
// At most one service operation per entity is in flight at any time: a
// toggle issued while another is outstanding is dropped, not queued. The
// active flag and counter are always updated inside one batch, so a
// subscriber can never observe a counter that does not correspond to the
// displayed boolean.
type Controller struct {
	id   string
	svc  Service
	kind Kind
	loop reactive.Dispatcher
	rec  *metrics.Recorder
	ctx  context.Context

	active  *reactive.Signal[bool]
	count   *reactive.Signal[int]
	loading *reactive.Signal[bool]
	errMsg  *reactive.Signal[string]

	pending  atomic.Bool
	disposed atomic.Bool
}

// Option configures a Controller. Options apply before the initial refresh.
type Option func(*Controller)

// WithSeed initializes the controller from a last-known server value and
// skips the automatic refresh on construction.
func WithSeed(seed Status) Option {
	return func(c *Controller) {
		c.active = reactive.NewSignal(seed.Active)
		c.count = reactive.NewSignal(seed.Count)
	}
}

// WithLoop settles service results on the given event loop.
func WithLoop(loop reactive.Dispatcher) Option {
	return func(c *Controller) { c.loop = loop }
}

// WithMetrics records toggle outcomes and rollbacks on rec.
func WithMetrics(rec *metrics.Recorder) Option {
	return func(c *Controller) { c.rec = rec }
}

// WithContext sets the base context passed to service calls.
func WithContext(ctx context.Context) Option {
	return func(c *Controller) { c.ctx = ctx }
}

// New creates a controller for entityID. Without WithSeed, the authoritative
// state is fetched immediately via Refresh.
func New(svc Service, entityID string, kind Kind, opts ...Option) *Controller {
	c := &Controller{
		id:      entityID,
		svc:     svc,
		kind:    kind,
		ctx:     context.Background(),
		loading: reactive.NewSignal(false),
		errMsg:  reactive.NewSignal(""),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.active == nil {
		c.active = reactive.NewSignal(false)
		c.count = reactive.NewSignal(0)
		c.Refresh()
	}
	return c
}

// ToggleOn activates the entity. A no-op when already active or while
// another operation is in flight.
func (c *Controller) ToggleOn() { c.toggleTo(true) }

// ToggleOff deactivates the entity. A no-op when already inactive or while
// another operation is in flight.
func (c *Controller) ToggleOff() { c.toggleTo(false) }

// Toggle dispatches to ToggleOn or ToggleOff based on the current state.
func (c *Controller) Toggle() { c.toggleTo(!c.active.Peek()) }

func (c *Controller) toggleTo(target bool) {
	if c.disposed.Load() {
		return
	}
	if c.active.Peek() == target {
		return
	}
	if !c.pending.CompareAndSwap(false, true) {
		return
	}

	snap := snapshot{active: c.active.Peek(), count: c.count.Peek()}
	delta := 1
	if !target {
		delta = -1
	}

	// Optimistic update, visible before any network round-trip.
	reactive.Batch(func() {
		c.active.Set(target)
		c.count.Set(snap.count + delta)
		c.loading.Set(true)
	})

	op := c.svc.Activate
	direction := "on"
	failMsg := c.kind.ActivateErr
	if !target {
		op = c.svc.Deactivate
		direction = "off"
		failMsg = c.kind.DeactivateErr
	}

	go func() {
		st, err := op(c.ctx, c.id)
		c.dispatch(func() { c.settleToggle(st, err, snap, direction, failMsg) })
	}()
}

func (c *Controller) settleToggle(st Status, err error, snap snapshot, direction, failMsg string) {
	defer c.pending.Store(false)

	if c.disposed.Load() {
		return
	}

	if err != nil {
		reactive.Batch(func() {
			c.active.Set(snap.active)
			c.count.Set(snap.count)
			c.loading.Set(false)
			c.errMsg.Set(failMsg)
		})
		c.rec.Rollback(c.kind.Name)
		c.rec.Toggle(c.kind.Name, direction, "error")
		return
	}

	reactive.Batch(func() {
		// Adopt the confirmed boolean but keep the locally adjusted
		// counter. Aggregate counts are maintained asynchronously on the
		// backend; a fresh read here would regress the value the user
		// just saw. The next full Refresh reconciles it.
		c.active.Set(st.Active)
		c.loading.Set(false)
		c.errMsg.Set("")
	})
	c.rec.Toggle(c.kind.Name, direction, "success")
}

// Refresh fetches the authoritative state and overwrites local values
// unconditionally. Shares the in-flight guard with the toggles.
func (c *Controller) Refresh() {
	if c.disposed.Load() {
		return
	}
	if !c.pending.CompareAndSwap(false, true) {
		return
	}

	c.loading.Set(true)

	go func() {
		st, err := c.svc.Status(c.ctx, c.id)
		c.dispatch(func() {
			defer c.pending.Store(false)

			if c.disposed.Load() {
				return
			}

			if err != nil {
				reactive.Batch(func() {
					c.loading.Set(false)
					c.errMsg.Set(c.kind.FetchErr)
				})
				return
			}

			reactive.Batch(func() {
				c.active.Set(st.Active)
				c.count.Set(st.Count)
				c.loading.Set(false)
				c.errMsg.Set("")
			})
		})
	}()
}

// ClearError clears the user-visible error.
func (c *Controller) ClearError() {
	c.errMsg.Set("")
}

// Dispose detaches the controller. In-flight operations still settle on the
// service side, but their results are discarded.
func (c *Controller) Dispose() {
	c.disposed.Store(true)
}

// Active returns the current boolean state, subscribing the tracked listener.
func (c *Controller) Active() bool { return c.active.Get() }

// Count returns the current aggregate counter.
func (c *Controller) Count() int { return c.count.Get() }

// IsLoading reports whether an operation is in flight.
func (c *Controller) IsLoading() bool { return c.loading.Get() }

// Err returns the current user-visible error, empty when none.
func (c *Controller) Err() string { return c.errMsg.Get() }

func (c *Controller) dispatch(fn func()) {
	if c.loop == nil {
		fn()
		return
	}
	c.loop.Dispatch(fn)
}
