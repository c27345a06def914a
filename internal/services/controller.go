package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"carsales-dashboard/internal/dataset"
	apperrors "carsales-dashboard/internal/errors"
	"carsales-dashboard/internal/models"
	"carsales-dashboard/internal/observability"
)

type State int

const (
	StateIdle State = iota
	StateComputing
)

func (s State) String() string {
	if s == StateComputing {
		return "computing"
	}
	return "idle"
}

// Frame is one published dashboard state: the snapshot it was computed from,
// all four views and the presentation hints.
type Frame struct {
	Seq        uint64       `json:"seq"`
	Params     FilterParams `json:"params"`
	Views      models.Views `json:"views"`
	Hints      Hints        `json:"hints"`
	ComputedAt time.Time    `json:"computed_at"`
	Duration   string       `json:"compute_duration"`
	Superseded int          `json:"superseded"`
}

type snapshot struct {
	seq    uint64
	params FilterParams
}

// passFailure is the outcome of the most recent failed pass.
type passFailure struct {
	seq uint64
	err error
}

// Controller recomputes the views whenever the parameter channels change.
// At most one pass runs at a time. A snapshot that arrives while a pass is
// in flight replaces any pending one; when the pass ends its result is
// dropped in favour of the newest snapshot. Frames are published whole.
type Controller struct {
	ds       *dataset.Dataset
	computer Computer
	logger   *slog.Logger

	mu        sync.Mutex
	state     State
	seq       uint64
	lastInput *Input
	pending   *snapshot
	current   *Frame
	failure   *passFailure
	closed    bool
	subs      map[int]chan Frame
	nextSubID int
	published chan struct{}
}

func NewController(ds *dataset.Dataset, computer Computer, logger *slog.Logger) *Controller {
	return &Controller{
		ds:        ds,
		computer:  computer,
		logger:    logger,
		subs:      make(map[int]chan Frame),
		published: make(chan struct{}),
	}
}

// Submit validates in and schedules a recompute if any channel changed.
// It returns the sequence number whose frame will reflect in. An invalid
// input is rejected and the published state is left as it was.
func (c *Controller) Submit(in Input) (uint64, error) {
	params, err := NewFilterParams(c.ds, in)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lastInput != nil && *c.lastInput == in {
		return c.seq, nil
	}

	c.seq++
	c.lastInput = &in
	snap := snapshot{seq: c.seq, params: params}

	if c.state == StateComputing {
		if c.pending != nil {
			c.logger.Debug("pending snapshot replaced", "seq", c.pending.seq, "by", snap.seq)
		}
		c.pending = &snap
		return snap.seq, nil
	}

	c.state = StateComputing
	go c.run(snap)
	return snap.seq, nil
}

func (c *Controller) run(snap snapshot) {
	superseded := 0
	for {
		ctx, span := observability.StartSpan(context.Background(), "controller.pass")
		start := time.Now()
		views, err := c.computer.Compute(ctx, snap.params)
		duration := time.Since(start)
		span.Finish()

		c.mu.Lock()
		if c.pending != nil {
			c.logger.Debug("discarding stale pass", "seq", snap.seq, "newer", c.pending.seq)
			snap = *c.pending
			c.pending = nil
			superseded++
			c.mu.Unlock()
			continue
		}

		if err != nil {
			// The prior frame stays published; waiters for this seq are woken
			// with the error.
			c.logger.Error("compute pass failed", "seq", snap.seq, "error", err, "span", span)
			c.failure = &passFailure{seq: snap.seq, err: err}
			c.wakeLocked()
			c.state = StateIdle
			c.lastInput = nil
			c.mu.Unlock()
			return
		}

		frame := Frame{
			Seq:        snap.seq,
			Params:     snap.params,
			Views:      views,
			Hints:      HintsFor(snap.params.Toggle),
			ComputedAt: time.Now(),
			Duration:   duration.String(),
			Superseded: superseded,
		}
		c.publishLocked(frame)
		c.state = StateIdle
		c.mu.Unlock()

		c.logger.Info("frame published",
			"seq", frame.Seq,
			"brand", frame.Params.Brand,
			"year", frame.Params.Year,
			"superseded", superseded,
			"duration", duration)
		return
	}
}

func (c *Controller) wakeLocked() {
	close(c.published)
	c.published = make(chan struct{})
}

func (c *Controller) publishLocked(frame Frame) {
	c.current = &frame
	c.wakeLocked()

	if c.closed {
		return
	}
	for _, ch := range c.subs {
		// Latest value wins for a subscriber that has not drained yet.
		select {
		case <-ch:
		default:
		}
		ch <- frame
	}
}

// Current returns the last published frame.
func (c *Controller) Current() (Frame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return Frame{}, false
	}
	return *c.current, true
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe delivers every published frame to the returned channel. A slow
// reader only ever sees the newest frame. The channel is closed by the
// returned cancel function or by Close.
func (c *Controller) Subscribe() (<-chan Frame, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan Frame, 1)
	if c.closed {
		close(ch)
		return ch, func() {}
	}
	if c.current != nil {
		ch <- *c.current
	}

	id := c.nextSubID
	c.nextSubID++
	c.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if sub, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(sub)
			}
		})
	}
}

// Await blocks until a frame with sequence seq or newer is published. If
// the pass that would have covered seq fails, Await returns its error.
func (c *Controller) Await(ctx context.Context, seq uint64) (Frame, error) {
	for {
		c.mu.Lock()
		if c.current != nil && c.current.Seq >= seq {
			frame := *c.current
			c.mu.Unlock()
			return frame, nil
		}
		if f := c.failure; f != nil && f.seq >= seq {
			c.mu.Unlock()
			return Frame{}, apperrors.Wrap(f.err, apperrors.CodeInternal, fmt.Sprintf("compute pass %d failed", f.seq))
		}
		published := c.published
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		case <-published:
		}
	}
}

// Close stops delivery to subscribers.
func (c *Controller) Close(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
	return nil
}
