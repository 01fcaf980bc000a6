package binder

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/dynamic-handlers/internal/event"
	"github.com/JakeFAU/dynamic-handlers/internal/worker"
)

type tickArgs struct {
	Label string
}

func (a tickArgs) Upper() string { return "TICK:" + a.Label }

type source struct {
	Tick     event.Event[tickArgs]
	Ptr      *event.Event[tickArgs]
	NilPtr   *event.Event[tickArgs]
	NotEvent string
	hidden   event.Event[tickArgs]
}

type listener struct {
	typed   []string
	untyped []any
}

func (l *listener) OnTickTyped(_ any, args tickArgs) {
	l.typed = append(l.typed, args.Label)
}

func (l *listener) OnTickUntyped(_ any, args any) {
	l.untyped = append(l.untyped, args)
}

func (l *listener) OnTickWrongArity(args tickArgs) {}

func (l *listener) OnTickWrongParam(_ any, args string) {}

func (l *listener) OnTickReturns(_ any, _ tickArgs) error { return nil }

func TestBindTypedHandler(t *testing.T) {
	t.Parallel()

	src := &source{}
	l := &listener{}

	h, err := Bind(src, "Tick", "OnTickTyped", l)
	require.NoError(t, err)
	require.True(t, src.Tick.Subscribed(h))

	src.Tick.Fire(src, tickArgs{Label: "a"})
	src.Tick.Fire(src, tickArgs{Label: "b"})
	require.Equal(t, []string{"a", "b"}, l.typed)
}

func TestBindWidenedHandler(t *testing.T) {
	t.Parallel()

	src := &source{}
	l := &listener{}

	h, err := Bind(src, "Tick", "OnTickUntyped", l)
	require.NoError(t, err)

	src.Tick.Fire(src, tickArgs{Label: "x"})
	require.Equal(t, []any{tickArgs{Label: "x"}}, l.untyped)

	require.NoError(t, Unbind(src, "Tick", h))
	src.Tick.Fire(src, tickArgs{Label: "y"})
	require.Len(t, l.untyped, 1)
}

func TestBindPointerField(t *testing.T) {
	t.Parallel()

	src := &source{Ptr: &event.Event[tickArgs]{}}
	l := &listener{}

	h, err := Bind(src, "Ptr", "OnTickTyped", l)
	require.NoError(t, err)
	src.Ptr.Fire(nil, tickArgs{Label: "p"})
	require.Equal(t, []string{"p"}, l.typed)
	require.NoError(t, Unbind(src, "Ptr", h))
	require.Zero(t, src.Ptr.Len())
}

func TestBindChannelNotFound(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		target  any
		channel string
	}{
		{name: "missing field", target: &source{}, channel: "Missing"},
		{name: "unexported field", target: &source{}, channel: "hidden"},
		{name: "not an event", target: &source{}, channel: "NotEvent"},
		{name: "nil pointer field", target: &source{}, channel: "NilPtr"},
		{name: "value target", target: source{}, channel: "Tick"},
		{name: "nil target", target: nil, channel: "Tick"},
		{name: "typed nil target", target: (*source)(nil), channel: "Tick"},
		{name: "non-struct target", target: new(int), channel: "Tick"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			l := &listener{}
			_, err := Bind(tc.target, tc.channel, "OnTickTyped", l)
			require.ErrorIs(t, err, ErrChannelNotFound)
		})
	}
}

func TestBindHandlerNotFoundLeavesSubscribersUnchanged(t *testing.T) {
	t.Parallel()

	src := &source{}
	existing := &listener{}
	h, err := Bind(src, "Tick", "OnTickTyped", existing)
	require.NoError(t, err)

	for _, name := range []string{"Missing", "onTickPrivate"} {
		_, err = Bind(src, "Tick", name, &listener{})
		require.ErrorIs(t, err, ErrHandlerNotFound)
	}
	_, err = Bind(src, "Tick", "OnTickTyped", nil)
	require.ErrorIs(t, err, ErrHandlerNotFound)

	require.Equal(t, 1, src.Tick.Len())
	require.True(t, src.Tick.Subscribed(h))
}

func TestBindSignatureMismatch(t *testing.T) {
	t.Parallel()

	src := &source{}
	for _, name := range []string{"OnTickWrongArity", "OnTickWrongParam", "OnTickReturns"} {
		t.Run(name, func(t *testing.T) {
			_, err := Bind(src, "Tick", name, &listener{})
			require.ErrorIs(t, err, ErrSignatureMismatch)
		})
	}
	require.Zero(t, src.Tick.Len())
}

func TestUnbindErrors(t *testing.T) {
	t.Parallel()

	src := &source{}
	h, err := Bind(src, "Tick", "OnTickTyped", &listener{})
	require.NoError(t, err)

	require.ErrorIs(t, Unbind(src, "Missing", h), ErrChannelNotFound)
	require.True(t, src.Tick.Subscribed(h))

	require.NoError(t, Unbind(src, "Tick", h))
	require.ErrorIs(t, Unbind(src, "Tick", h), event.ErrNotSubscribed)
}

func TestBindWorkerProgressUpdate(t *testing.T) {
	t.Parallel()

	w := worker.New(worker.WithIterations(3), worker.WithInterval(0))
	l := &listener{}

	h, err := Bind(w, "ProgressUpdate", "OnTickUntyped", l)
	require.NoError(t, err)
	_, err = Call(w, "DoWork")
	require.NoError(t, err)
	require.NoError(t, Unbind(w, "ProgressUpdate", h))

	require.Len(t, l.untyped, 3)
	msg, err := StringField(l.untyped[2], "ProgressMessage")
	require.NoError(t, err)
	require.Equal(t, "Working (3%)", msg)
}

type calc struct {
	calls int
}

func (c *calc) Add(a, b int) int { return a + b }

func (c *calc) Fail() error { return errors.New("calc failed") }

func (c *calc) Divide(a, b int) (int, error) {
	if b == 0 {
		return 0, errors.New("divide by zero")
	}
	return a / b, nil
}

func (c *calc) Touch(p *int) { c.calls++ }

func TestCall(t *testing.T) {
	t.Parallel()

	c := &calc{}

	got, err := Call(c, "Add", 2, 3)
	require.NoError(t, err)
	require.Equal(t, []any{5}, got)

	got, err = Call(c, "Divide", 9, 3)
	require.NoError(t, err)
	require.Equal(t, []any{3}, got)

	_, err = Call(c, "Divide", 1, 0)
	require.EqualError(t, err, "divide by zero")

	_, err = Call(c, "Fail")
	require.EqualError(t, err, "calc failed")

	_, err = Call(c, "Touch", nil)
	require.NoError(t, err)
	require.Equal(t, 1, c.calls)
}

func TestCallErrors(t *testing.T) {
	t.Parallel()

	c := &calc{}
	_, err := Call(c, "Missing")
	require.ErrorIs(t, err, ErrMethodNotFound)

	_, err = Call(nil, "Add")
	require.ErrorIs(t, err, ErrMethodNotFound)

	_, err = Call(c, "Add", 1)
	require.ErrorIs(t, err, ErrSignatureMismatch)

	_, err = Call(c, "Add", "1", 2)
	require.ErrorIs(t, err, ErrSignatureMismatch)

	_, err = Call(c, "Add", nil, 2)
	require.ErrorIs(t, err, ErrSignatureMismatch)
}

func TestStringField(t *testing.T) {
	t.Parallel()

	args := tickArgs{Label: "l"}

	got, err := StringField(args, "Label")
	require.NoError(t, err)
	require.Equal(t, "l", got)

	got, err = StringField(&args, "Label")
	require.NoError(t, err)
	require.Equal(t, "l", got)

	got, err = StringField(args, "Upper")
	require.NoError(t, err)
	require.Equal(t, "TICK:l", got)

	for _, v := range []any{nil, 42, (*tickArgs)(nil), struct{ N int }{N: 1}} {
		_, err = StringField(v, "Label")
		require.ErrorIs(t, err, ErrFieldNotFound)
	}
	_, err = StringField(struct{ Label int }{Label: 1}, "Label")
	require.ErrorIs(t, err, ErrFieldNotFound)
}
