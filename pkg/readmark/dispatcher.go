// Package readmark reports feed items as read once they have genuinely been
// seen. Each tracked item gets a visibility trigger (70% visible for one
// second by default); when it fires, the item is marked read exactly once per
// mounted lifetime and forwarded to the read-tracking service.
//
// Read tracking is best-effort telemetry. Service failures are logged and
// never surfaced to the user.
package readmark

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/tessera-dev/tessera/pkg/metrics"
	"github.com/tessera-dev/tessera/pkg/reactive"
	"github.com/tessera-dev/tessera/pkg/visibility"
)

// Service is the read-tracking boundary. MarkRead reports the given item ids
// and returns how many the backend actually marked.
type Service interface {
	MarkRead(ctx context.Context, itemIDs []string) (markedCount int, err error)
}

// Defaults for the per-item visibility trigger.
const (
	DefaultThreshold = 0.7
	DefaultDelay     = time.Second
)

// Dispatcher owns the read-mark records for one feed surface and wires a
// visibility trigger per tracked item.
type Dispatcher struct {
	svc    Service
	logger *slog.Logger
	loop   reactive.Dispatcher
	rec    *metrics.Recorder
	ctx    context.Context

	threshold float64
	delay     time.Duration

	// retryOnFailure selects the strict guard policy: a failed service call
	// rolls the per-item record back so a later visibility episode retries.
	// The default lenient policy leaves the record set, trading a possibly
	// lost mark for never issuing duplicate calls.
	retryOnFailure bool

	mu     sync.Mutex
	marked map[string]bool
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger for service failures.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

// WithLoop delivers trigger callbacks on the given event loop.
func WithLoop(loop reactive.Dispatcher) Option {
	return func(d *Dispatcher) { d.loop = loop }
}

// WithMetrics records read marks and failures on rec.
func WithMetrics(rec *metrics.Recorder) Option {
	return func(d *Dispatcher) { d.rec = rec }
}

// WithContext sets the base context passed to service calls.
func WithContext(ctx context.Context) Option {
	return func(d *Dispatcher) { d.ctx = ctx }
}

// WithTrigger overrides the visibility threshold and delay for tracked items.
func WithTrigger(threshold float64, delay time.Duration) Option {
	return func(d *Dispatcher) {
		d.threshold = threshold
		d.delay = delay
	}
}

// WithRetryOnFailure rolls the read-mark record back when the service call
// fails, permitting a retry on a later visibility episode.
func WithRetryOnFailure() Option {
	return func(d *Dispatcher) { d.retryOnFailure = true }
}

// New creates a Dispatcher reporting to svc.
func New(svc Service, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		svc:       svc,
		logger:    slog.Default(),
		ctx:       context.Background(),
		threshold: DefaultThreshold,
		delay:     DefaultDelay,
		marked:    make(map[string]bool),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Track starts visibility tracking for itemID and returns the handle the
// runtime feeds intersection updates into. A blank id yields an inert handle.
// The caller disposes the handle when the item unmounts.
func (d *Dispatcher) Track(itemID string) *visibility.Handle {
	if strings.TrimSpace(itemID) == "" {
		return visibility.Observe(nil, visibility.Options{}, nil)
	}

	el := &visibility.Element{ID: itemID}
	opts := visibility.Options{
		Threshold: d.threshold,
		Delay:     d.delay,
		Notify:    d.loop,
	}
	return visibility.Observe(el, opts, func() {
		d.rec.VisibilityTrigger()
		d.Mark(itemID)
	})
}

// Mark reports the given item ids as read. Blank ids are dropped, duplicates
// collapse to one, and ids already marked are never re-requested. The guard
// is set before the service call is dispatched, so overlapping visibility
// episodes for the same item can never produce two in-flight requests.
func (d *Dispatcher) Mark(itemIDs ...string) {
	d.mu.Lock()
	var pending []string
	for _, id := range itemIDs {
		if strings.TrimSpace(id) == "" {
			continue
		}
		if d.marked[id] {
			continue
		}
		d.marked[id] = true
		pending = append(pending, id)
	}
	d.mu.Unlock()

	if len(pending) == 0 {
		return
	}

	go func() {
		n, err := d.svc.MarkRead(d.ctx, pending)
		if err != nil {
			d.logger.Error("read mark failed", "items", pending, "error", err)
			d.rec.ReadMarkFailure()
			if d.retryOnFailure {
				d.mu.Lock()
				for _, id := range pending {
					delete(d.marked, id)
				}
				d.mu.Unlock()
			}
			return
		}
		d.rec.ReadMarks(n)
	}()
}

// Marked reports whether itemID has been marked read in this lifetime.
func (d *Dispatcher) Marked(itemID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.marked[itemID]
}
