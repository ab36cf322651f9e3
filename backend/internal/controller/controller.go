// Package controller holds the intended actuator state on top of the telemetry client.
// Commands are applied optimistically and reverted when the remote service rejects them.
// Watering is stopped automatically after a configurable duration.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"greenhouse-monitor/backend/internal/commandlog"
	"greenhouse-monitor/backend/internal/telemetry"
	"greenhouse-monitor/backend/pkg/utils"
)

const (
	// DefaultWateringDuration is used when StartWatering is called without a duration.
	DefaultWateringDuration = 30 * time.Second
	// DefaultReconcileGrace is how long a locally commanded actuator ignores remote status.
	// The service takes a while to expose a new entry, so a status read right after a command
	// usually still shows the previous value.
	DefaultReconcileGrace = 20 * time.Second

	maxWateringDuration = time.Hour
)

var (
	ErrDispatchFailed  = errors.New("command was not accepted by the remote service")
	ErrUnknownActuator = errors.New("unknown actuator")
	ErrInvalidDuration = errors.New("invalid watering duration")
)

// Dispatcher sends actuator commands. *telemetry.Client implements it.
type Dispatcher interface {
	SendMany(ctx context.Context, updates map[telemetry.ControlField]bool) bool
}

// Recorder persists dispatched commands. *commandlog.Log implements it.
type Recorder interface {
	Record(ctx context.Context, e commandlog.Entry) error
}

// State is the intended actuator state.
type State struct {
	telemetry.DeviceStatus

	AutoStopPending bool       `json:"autoStopPending"`
	WateringUntil   *time.Time `json:"wateringUntil,omitempty"`
}

// Command is an actuator change requested over the API or MQTT.
type Command struct {
	Actuator        string `json:"actuator"`
	On              bool   `json:"on"`
	DurationSeconds int    `json:"durationSeconds,omitempty"`
}

type scheduleFunc func(d time.Duration, f func()) (stop func() bool)

// Controller is safe for concurrent use.
type Controller struct {
	l          *slog.Logger
	dispatcher Dispatcher
	recorder   Recorder
	listener   func(State)
	watering   time.Duration
	grace      time.Duration
	now        func() time.Time
	schedule   scheduleFunc

	mu            sync.Mutex
	state         telemetry.DeviceStatus
	commandedAt   map[telemetry.ControlField]time.Time
	stopAutoStop  func() bool
	wateringUntil time.Time
	// generation invalidates scheduled auto-stops whenever watering is changed by anyone else
	generation uint64
}

// Option configures a Controller.
type Option func(*Controller)

func WithWateringDuration(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.watering = d
		}
	}
}

func WithReconcileGrace(d time.Duration) Option {
	return func(c *Controller) { c.grace = d }
}

func WithRecorder(r Recorder) Option {
	return func(c *Controller) { c.recorder = r }
}

// WithStateListener registers fn to be called with the resulting state after every applied
// command, every auto-stop and every reconciliation that changed the state. fn runs on the
// caller's goroutine (the timer goroutine for auto-stops) without the controller lock held.
func WithStateListener(fn func(State)) Option {
	return func(c *Controller) { c.listener = fn }
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func withScheduler(s scheduleFunc) Option {
	return func(c *Controller) { c.schedule = s }
}

func New(l *slog.Logger, d Dispatcher, opts ...Option) *Controller {
	c := &Controller{
		l:           l.With(slog.String("component", "controller")),
		dispatcher:  d,
		watering:    DefaultWateringDuration,
		grace:       DefaultReconcileGrace,
		now:         time.Now,
		commandedAt: make(map[telemetry.ControlField]time.Time),
		schedule: func(d time.Duration, f func()) func() bool {
			return time.AfterFunc(d, f).Stop
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// State returns the intended state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.stateLocked()
}

func (c *Controller) stateLocked() State {
	s := State{DeviceStatus: c.state, AutoStopPending: c.stopAutoStop != nil}

	if s.AutoStopPending {
		until := c.wateringUntil
		s.WateringUntil = &until
	}

	return s
}

// Apply parses and executes cmd. The state listener is notified unless cmd was rejected
// before dispatch.
func (c *Controller) Apply(ctx context.Context, cmd Command) (State, error) {
	state, err := c.apply(ctx, cmd)
	if err == nil || errors.Is(err, ErrDispatchFailed) {
		c.notify(state)
	}

	return state, err
}

func (c *Controller) apply(ctx context.Context, cmd Command) (State, error) {
	field, err := telemetry.ParseControlField(cmd.Actuator)
	if err != nil {
		return c.State(), fmt.Errorf("%w: %q", ErrUnknownActuator, cmd.Actuator)
	}

	// Bounded before conversion so large values cannot wrap into a valid duration
	if cmd.DurationSeconds < 0 || cmd.DurationSeconds > int(maxWateringDuration/time.Second) {
		return c.State(), fmt.Errorf("%w: %d seconds", ErrInvalidDuration, cmd.DurationSeconds)
	}

	switch {
	case field == telemetry.Watering && cmd.On:
		return c.StartWatering(ctx, time.Duration(cmd.DurationSeconds)*time.Second)
	case field == telemetry.Watering:
		return c.StopWatering(ctx)
	default:
		return c.set(ctx, field, cmd.On)
	}
}

// SetGrowLight switches the grow light.
func (c *Controller) SetGrowLight(ctx context.Context, on bool) (State, error) {
	return c.set(ctx, telemetry.GrowLight, on)
}

// SetAutoMode switches automatic mode.
func (c *Controller) SetAutoMode(ctx context.Context, on bool) (State, error) {
	return c.set(ctx, telemetry.AutoMode, on)
}

func (c *Controller) set(ctx context.Context, field telemetry.ControlField, on bool) (State, error) {
	c.mu.Lock()
	prev := c.state.Get(field)
	c.state = c.state.With(field, on)
	c.mu.Unlock()

	ok := c.dispatch(ctx, field, on)

	c.mu.Lock()
	defer c.mu.Unlock()

	if !ok {
		// Only revert if nobody changed the actuator while the command was in flight
		if c.state.Get(field) == on {
			c.state = c.state.With(field, prev)
		}

		return c.stateLocked(), ErrDispatchFailed
	}

	return c.stateLocked(), nil
}

// StartWatering turns watering on and schedules it to stop after d, or after the configured
// default when d is zero. A pending auto-stop from an earlier start is replaced.
func (c *Controller) StartWatering(ctx context.Context, d time.Duration) (State, error) {
	if d < 0 || d > maxWateringDuration {
		return c.State(), fmt.Errorf("%w: %s", ErrInvalidDuration, d)
	}

	if d == 0 {
		d = c.watering
	}

	c.mu.Lock()
	prev := c.state.Watering
	c.cancelAutoStopLocked()
	c.state.Watering = true
	gen := c.generation
	c.mu.Unlock()

	ok := c.dispatch(ctx, telemetry.Watering, true)

	c.mu.Lock()
	defer c.mu.Unlock()

	if !ok {
		if c.generation == gen && c.state.Watering {
			c.state.Watering = prev
		}

		return c.stateLocked(), ErrDispatchFailed
	}

	if c.generation != gen || !c.state.Watering {
		c.l.Debug("watering changed while starting, not scheduling auto-stop")
		return c.stateLocked(), nil
	}

	c.scheduleAutoStopLocked(d)

	return c.stateLocked(), nil
}

// StopWatering turns watering off and cancels any pending auto-stop.
func (c *Controller) StopWatering(ctx context.Context) (State, error) {
	c.mu.Lock()
	prev := c.state.Watering
	remaining := time.Duration(0)

	if c.stopAutoStop != nil {
		remaining = c.wateringUntil.Sub(c.now())
	}

	c.cancelAutoStopLocked()
	c.state.Watering = false
	gen := c.generation
	c.mu.Unlock()

	ok := c.dispatch(ctx, telemetry.Watering, false)

	c.mu.Lock()
	defer c.mu.Unlock()

	if !ok {
		if c.generation == gen && !c.state.Watering {
			c.state.Watering = prev

			if prev && remaining > 0 {
				c.scheduleAutoStopLocked(remaining)
			}
		}

		return c.stateLocked(), ErrDispatchFailed
	}

	return c.stateLocked(), nil
}

// Reconcile adopts remote-confirmed status. Actuators commanded within the grace period keep
// their intended value. A remote report of watering off cancels the pending auto-stop.
func (c *Controller) Reconcile(status telemetry.DeviceStatus) State {
	c.mu.Lock()

	now := c.now()
	changed := false

	for _, field := range telemetry.ControlFields {
		if at, ok := c.commandedAt[field]; ok && now.Sub(at) < c.grace {
			continue
		}

		remote := status.Get(field)
		if remote == c.state.Get(field) {
			continue
		}

		c.l.Info("adopting remote actuator state", slog.String("actuator", field.String()), slog.Bool("on", remote))
		c.state = c.state.With(field, remote)
		changed = true

		if field == telemetry.Watering && !remote {
			c.cancelAutoStopLocked()
		}
	}

	state := c.stateLocked()
	c.mu.Unlock()

	if changed {
		c.notify(state)
	}

	return state
}

// Close cancels a pending auto-stop without dispatching it.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelAutoStopLocked()
}

func (c *Controller) scheduleAutoStopLocked(d time.Duration) {
	c.generation++
	gen := c.generation

	c.wateringUntil = c.now().Add(d)
	c.stopAutoStop = c.schedule(d, func() { c.autoStop(gen) })

	c.l.Info("watering auto-stop scheduled", slog.Duration("after", d))
}

func (c *Controller) cancelAutoStopLocked() {
	c.generation++

	if c.stopAutoStop != nil {
		c.stopAutoStop()
		c.stopAutoStop = nil
		c.wateringUntil = time.Time{}
		c.l.Debug("watering auto-stop cancelled")
	}
}

// autoStop runs on the timer goroutine. It is a no-op when the task was superseded or when
// watering is already off.
func (c *Controller) autoStop(gen uint64) {
	c.mu.Lock()

	if gen != c.generation || c.stopAutoStop == nil {
		c.mu.Unlock()
		return
	}

	c.stopAutoStop = nil
	c.wateringUntil = time.Time{}

	if !c.state.Watering {
		c.mu.Unlock()
		c.l.Debug("watering already stopped, skipping auto-stop")

		return
	}

	c.state.Watering = false
	c.generation++
	gen = c.generation
	c.mu.Unlock()

	ctx := WithOrigin(context.Background(), OriginAutoStop)
	ok := c.dispatch(ctx, telemetry.Watering, false)

	c.mu.Lock()

	if !ok {
		if c.generation == gen && !c.state.Watering {
			c.state.Watering = true
		}

		c.l.Error("watering auto-stop failed, watering may still be running")
	}

	state := c.stateLocked()
	c.mu.Unlock()

	c.notify(state)
}

func (c *Controller) notify(state State) {
	if c.listener != nil {
		c.listener(state)
	}
}

func (c *Controller) dispatch(ctx context.Context, field telemetry.ControlField, on bool) bool {
	origin := OriginOf(ctx)

	c.mu.Lock()
	c.commandedAt[field] = c.now()
	c.mu.Unlock()

	ok := c.dispatcher.SendMany(ctx, map[telemetry.ControlField]bool{field: on})

	c.l.Info("actuator command",
		slog.String("actuator", field.String()),
		slog.Bool("on", on),
		slog.Bool("accepted", ok),
		slog.String("origin", string(origin)))

	if c.recorder != nil {
		err := c.recorder.Record(context.WithoutCancel(ctx), commandlog.Entry{
			Actuator: field.String(),
			On:       on,
			Accepted: ok,
			Origin:   string(origin),
		})
		if err != nil {
			c.l.Error("failed to record command", utils.ErrAttr(err))
		}
	}

	return ok
}
