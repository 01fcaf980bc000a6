// Package client drives a worker it only knows by name: it resolves and
// constructs the worker through a type registry, binds its own progress
// handler to the worker's event by name, invokes the work method dynamically
// and always unbinds the handler before returning.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/JakeFAU/dynamic-handlers/internal/binder"
	"github.com/JakeFAU/dynamic-handlers/internal/clock/system"
	"github.com/JakeFAU/dynamic-handlers/internal/event"
	idgen "github.com/JakeFAU/dynamic-handlers/internal/id/uuid"
	"github.com/JakeFAU/dynamic-handlers/internal/progress"
	"github.com/JakeFAU/dynamic-handlers/internal/registry"
)

// Error kinds surfaced by RunWorker. They alias the sentinels of the packages
// that detect them so either can be used with errors.Is.
var (
	ErrTypeNotFound        = registry.ErrTypeNotFound
	ErrInstantiationFailed = registry.ErrInstantiationFailed
	ErrChannelNotFound     = binder.ErrChannelNotFound
	ErrHandlerNotFound     = binder.ErrHandlerNotFound
	ErrMethodNotFound      = binder.ErrMethodNotFound
	ErrSignatureMismatch   = binder.ErrSignatureMismatch
)

// State is a step of a single run.
type State string

// Run states, in the order a successful run visits them.
const (
	StateIdle            State = "Idle"
	StateTypeResolved    State = "TypeResolved"
	StateInstanceCreated State = "InstanceCreated"
	StateSubscribed      State = "Subscribed"
	StateWorking         State = "Working"
	StateUnsubscribed    State = "Unsubscribed"
	StateDone            State = "Done"
	StateFailed          State = "Failed"
)

// Member names used when none are configured.
const (
	DefaultTypeName    = "external.Worker"
	DefaultEventName   = "ProgressUpdate"
	DefaultHandlerName = "OnProgressUpdate"
	DefaultMethod      = "DoWork"
	messageField       = "ProgressMessage"
)

// Options names the members the client looks up at runtime.
type Options struct {
	TypeName    string
	EventName   string
	HandlerName string
	Method      string
}

// DefaultOptions returns the member names of the bundled worker.
func DefaultOptions() Options {
	return Options{
		TypeName:    DefaultTypeName,
		EventName:   DefaultEventName,
		HandlerName: DefaultHandlerName,
		Method:      DefaultMethod,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.TypeName == "" {
		o.TypeName = d.TypeName
	}
	if o.EventName == "" {
		o.EventName = d.EventName
	}
	if o.HandlerName == "" {
		o.HandlerName = d.HandlerName
	}
	if o.Method == "" {
		o.Method = d.Method
	}
	return o
}

// TypeResolver finds the factory registered for a type name.
type TypeResolver interface {
	Resolve(name string) (registry.Factory, error)
}

// IDGenerator issues run identifiers.
type IDGenerator interface {
	NewRawID() (uuid.UUID, error)
}

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}

// WorkerClient runs one worker at a time. It is not safe for concurrent runs.
type WorkerClient struct {
	resolver TypeResolver
	out      io.Writer
	emitter  progress.Emitter
	ids      IDGenerator
	clock    Clock
	opts     Options
	logger   *zap.Logger

	state     State
	runID     [16]byte
	iteration int
	instance  any
	handle    event.Handle
	bound     bool
}

// New constructs a WorkerClient. Nil collaborators fall back to stdout, a
// no-op emitter, UUID v7 run IDs, the system clock and a no-op logger.
func New(
	resolver TypeResolver,
	out io.Writer,
	emitter progress.Emitter,
	ids IDGenerator,
	clock Clock,
	opts Options,
	logger *zap.Logger,
) *WorkerClient {
	if resolver == nil {
		resolver = registry.Default
	}
	if out == nil {
		out = os.Stdout
	}
	if emitter == nil {
		emitter = progress.Nop{}
	}
	if ids == nil {
		ids = idgen.New()
	}
	if clock == nil {
		clock = system.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkerClient{
		resolver: resolver,
		out:      out,
		emitter:  emitter,
		ids:      ids,
		clock:    clock,
		opts:     opts.withDefaults(),
		logger:   logger,
		state:    StateIdle,
	}
}

// RunWorker performs one complete run: resolve, instantiate, bind, work,
// unbind. The handler is unbound whenever binding succeeded, even if the work
// method returns an error or panics; a panic is re-raised after cleanup.
func (c *WorkerClient) RunWorker(ctx context.Context) (err error) {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("run worker: %w", err)
	}
	id, err := c.ids.NewRawID()
	if err != nil {
		return fmt.Errorf("run worker: %w", err)
	}

	c.runID = progress.UUIDToBytes(id)
	c.iteration = 0
	c.instance = nil
	c.bound = false
	c.state = StateIdle
	logger := c.logger.With(zap.Stringer("run_id", id), zap.String("worker_type", c.opts.TypeName))
	start := c.clock.Now()
	c.emit(progress.Event{Stage: progress.StageRunStart})
	logger.Info("worker run started")

	defer func() {
		rec := recover()
		if rec != nil && err == nil {
			err = fmt.Errorf("worker panicked: %v", rec)
		}
		dur := c.clock.Now().Sub(start)
		if err != nil {
			c.transition(logger, StateFailed)
			c.emit(progress.Event{Stage: progress.StageRunError, Dur: dur, Note: err.Error()})
			logger.Error("worker run failed", zap.Error(err), zap.Duration("dur", dur))
		} else {
			c.transition(logger, StateDone)
			c.emit(progress.Event{Stage: progress.StageRunDone, Dur: dur})
			logger.Info("worker run finished", zap.Int("notifications", c.iteration), zap.Duration("dur", dur))
		}
		if rec != nil {
			panic(rec)
		}
	}()

	factory, err := c.resolver.Resolve(c.opts.TypeName)
	if err != nil {
		return fmt.Errorf("resolve worker type: %w", err)
	}
	c.transition(logger, StateTypeResolved)

	instance, err := registry.Construct(c.opts.TypeName, factory)
	if err != nil {
		return fmt.Errorf("create worker: %w", err)
	}
	c.instance = instance
	c.transition(logger, StateInstanceCreated)

	return c.work(logger, instance)
}

func (c *WorkerClient) work(logger *zap.Logger, instance any) (err error) {
	handle, err := binder.Bind(instance, c.opts.EventName, c.opts.HandlerName, c)
	if err != nil {
		return fmt.Errorf("bind %s: %w", c.opts.EventName, err)
	}
	c.handle = handle
	c.bound = true
	c.transition(logger, StateSubscribed)

	defer func() {
		if uerr := binder.Unbind(instance, c.opts.EventName, handle); uerr != nil {
			err = multierr.Append(err, fmt.Errorf("unbind %s: %w", c.opts.EventName, uerr))
			return
		}
		c.bound = false
		c.transition(logger, StateUnsubscribed)
	}()

	c.transition(logger, StateWorking)
	if _, err := binder.Call(instance, c.opts.Method); err != nil {
		return fmt.Errorf("invoke %s: %w", c.opts.Method, err)
	}
	return nil
}

// OnProgressUpdate handles the worker's progress event. The payload type is
// unknown at compile time; its ProgressMessage is read by name.
func (c *WorkerClient) OnProgressUpdate(_ any, args any) {
	msg, err := binder.StringField(args, messageField)
	if err != nil {
		c.logger.Warn("progress payload has no message", zap.Error(err))
		return
	}
	c.iteration++
	if _, err := fmt.Fprintf(c.out, "Progress: %s\n", msg); err != nil {
		c.logger.Warn("write progress", zap.Error(err))
	}
	c.emit(progress.Event{Stage: progress.StageProgress, Iteration: c.iteration, Message: msg})
}

func (c *WorkerClient) transition(logger *zap.Logger, next State) {
	logger.Debug("run state", zap.String("from", string(c.state)), zap.String("to", string(next)))
	c.state = next
}

func (c *WorkerClient) emit(evt progress.Event) {
	evt.RunID = c.runID
	evt.TS = c.clock.Now()
	evt.WorkerType = c.opts.TypeName
	c.emitter.Emit(evt)
}

// State reports the state reached by the current or most recent run.
func (c *WorkerClient) State() State {
	return c.state
}

// Options reports the member names the client resolves.
func (c *WorkerClient) Options() Options {
	return c.opts
}

// Worker returns the instance created by the most recent run, if any.
func (c *WorkerClient) Worker() any {
	return c.instance
}

// Handle returns the subscription handle of the most recent run and whether
// it is still bound.
func (c *WorkerClient) Handle() (event.Handle, bool) {
	return c.handle, c.bound
}

// IsLookupError reports whether err stems from a failed name lookup rather
// than from the work itself.
func IsLookupError(err error) bool {
	for _, target := range []error{
		ErrTypeNotFound,
		ErrInstantiationFailed,
		ErrChannelNotFound,
		ErrHandlerNotFound,
		ErrMethodNotFound,
		ErrSignatureMismatch,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
