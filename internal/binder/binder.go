// Package binder attaches handler methods to event channels, invokes methods
// and reads fields on values whose concrete types are only known at runtime.
// Members are located by name through reflection; Go reflection only exposes
// exported fields and methods, so every member looked up here must be exported.
package binder

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/JakeFAU/dynamic-handlers/internal/event"
)

// Sentinel errors reported by the binder. Callers match them with errors.Is.
var (
	ErrChannelNotFound   = errors.New("channel not found")
	ErrHandlerNotFound   = errors.New("handler not found")
	ErrMethodNotFound    = errors.New("method not found")
	ErrFieldNotFound     = errors.New("field not found")
	ErrSignatureMismatch = errors.New("signature mismatch")
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Bind resolves channelName on target and handlerName on owner, adapts the
// handler method to the channel's handler type and registers it. The returned
// handle is required by Unbind. Nothing is registered when Bind fails.
func Bind(target any, channelName, handlerName string, owner any) (event.Handle, error) {
	ch, err := resolveChannel(target, channelName)
	if err != nil {
		return 0, err
	}

	method := methodByName(owner, handlerName)
	if !method.IsValid() {
		return 0, fmt.Errorf("%w: %q on %s", ErrHandlerNotFound, handlerName, typeName(owner))
	}

	fn, err := adapt(method, ch.HandlerType())
	if err != nil {
		return 0, fmt.Errorf("bind %s.%s to %s.%s: %w",
			typeName(owner), handlerName, typeName(target), channelName, err)
	}

	h, err := ch.AddHandler(fn)
	if err != nil {
		return 0, fmt.Errorf("register %s.%s on %s.%s: %w",
			typeName(owner), handlerName, typeName(target), channelName, err)
	}
	return h, nil
}

// Unbind removes the subscription identified by h from target's channelName.
func Unbind(target any, channelName string, h event.Handle) error {
	ch, err := resolveChannel(target, channelName)
	if err != nil {
		return err
	}
	if err := ch.RemoveHandler(h); err != nil {
		return fmt.Errorf("unbind from %s.%s: %w", typeName(target), channelName, err)
	}
	return nil
}

// resolveChannel finds an exported struct field named name whose value (or
// address) implements event.Channel. target must be a pointer when the field
// is held by value.
func resolveChannel(target any, name string) (event.Channel, error) {
	notFound := fmt.Errorf("%w: %q on %s", ErrChannelNotFound, name, typeName(target))

	v := reflect.ValueOf(target)
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, notFound
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, notFound
	}

	sf, ok := v.Type().FieldByName(name)
	if !ok || !sf.IsExported() {
		return nil, notFound
	}
	field, err := v.FieldByIndexErr(sf.Index)
	if err != nil {
		return nil, notFound
	}

	switch {
	case field.Kind() == reflect.Pointer:
		if field.IsNil() {
			return nil, fmt.Errorf("%w (nil)", notFound)
		}
		if ch, ok := field.Interface().(event.Channel); ok {
			return ch, nil
		}
	case field.CanAddr():
		if ch, ok := field.Addr().Interface().(event.Channel); ok {
			return ch, nil
		}
	default:
		return nil, fmt.Errorf("%w (target must be a pointer)", notFound)
	}
	return nil, fmt.Errorf("%w (field is %s, not an event)", notFound, field.Type())
}

// adapt turns method into a func of type want. Parameters may be wider than
// the channel's (an `any` parameter accepts a concrete payload); results must
// be assignable back to the channel's result types.
func adapt(method reflect.Value, want reflect.Type) (reflect.Value, error) {
	have := method.Type()
	if have.ConvertibleTo(want) {
		return method.Convert(want), nil
	}

	if have.NumIn() != want.NumIn() || have.NumOut() != want.NumOut() || have.IsVariadic() != want.IsVariadic() {
		return reflect.Value{}, fmt.Errorf("%w: have %s, want %s", ErrSignatureMismatch, have, want)
	}
	for i := 0; i < want.NumIn(); i++ {
		if !want.In(i).AssignableTo(have.In(i)) {
			return reflect.Value{}, fmt.Errorf("%w: parameter %d: %s does not accept %s",
				ErrSignatureMismatch, i, have.In(i), want.In(i))
		}
	}
	for i := 0; i < want.NumOut(); i++ {
		if !have.Out(i).AssignableTo(want.Out(i)) {
			return reflect.Value{}, fmt.Errorf("%w: result %d: %s is not assignable to %s",
				ErrSignatureMismatch, i, have.Out(i), want.Out(i))
		}
	}

	return reflect.MakeFunc(want, func(args []reflect.Value) []reflect.Value {
		var out []reflect.Value
		if want.IsVariadic() {
			out = method.CallSlice(args)
		} else {
			out = method.Call(args)
		}
		for i, res := range out {
			if res.Type() != want.Out(i) {
				widened := reflect.New(want.Out(i)).Elem()
				widened.Set(res)
				out[i] = widened
			}
		}
		return out
	}), nil
}

// Call invokes methodName on target with args and returns its results. A
// trailing error result is stripped from the returned slice and returned as
// the error when non-nil.
func Call(target any, methodName string, args ...any) ([]any, error) {
	method := methodByName(target, methodName)
	if !method.IsValid() {
		return nil, fmt.Errorf("%w: %q on %s", ErrMethodNotFound, methodName, typeName(target))
	}

	mt := method.Type()
	if mt.IsVariadic() || mt.NumIn() != len(args) {
		return nil, fmt.Errorf("%w: %s.%s is %s, called with %d argument(s)",
			ErrSignatureMismatch, typeName(target), methodName, mt, len(args))
	}

	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		v, err := argValue(arg, mt.In(i))
		if err != nil {
			return nil, fmt.Errorf("%s.%s argument %d: %w", typeName(target), methodName, i, err)
		}
		in[i] = v
	}

	out := method.Call(in)
	var callErr error
	if n := len(out); n > 0 && mt.Out(n-1) == errorType {
		if e, ok := out[n-1].Interface().(error); ok {
			callErr = e
		}
		out = out[:n-1]
	}

	results := make([]any, len(out))
	for i, res := range out {
		results[i] = res.Interface()
	}
	return results, callErr
}

func argValue(arg any, want reflect.Type) (reflect.Value, error) {
	if arg == nil {
		switch want.Kind() {
		case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
			return reflect.Zero(want), nil
		default:
			return reflect.Value{}, fmt.Errorf("%w: nil is not a valid %s", ErrSignatureMismatch, want)
		}
	}
	v := reflect.ValueOf(arg)
	if !v.Type().AssignableTo(want) {
		return reflect.Value{}, fmt.Errorf("%w: %s is not assignable to %s", ErrSignatureMismatch, v.Type(), want)
	}
	return v, nil
}

// StringField reads name from v, accepting either an exported string field or
// a method taking no arguments and returning a string.
func StringField(v any, name string) (string, error) {
	notFound := fmt.Errorf("%w: %q on %s", ErrFieldNotFound, name, typeName(v))

	if m := methodByName(v, name); m.IsValid() {
		mt := m.Type()
		if mt.NumIn() == 0 && mt.NumOut() == 1 && mt.Out(0).Kind() == reflect.String {
			return m.Call(nil)[0].String(), nil
		}
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return "", notFound
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return "", notFound
	}
	sf, ok := rv.Type().FieldByName(name)
	if !ok || !sf.IsExported() {
		return "", notFound
	}
	field, err := rv.FieldByIndexErr(sf.Index)
	if err != nil || field.Kind() != reflect.String {
		return "", notFound
	}
	return field.String(), nil
}

func methodByName(v any, name string) reflect.Value {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return reflect.Value{}
	}
	if rv.Kind() == reflect.Pointer && rv.IsNil() {
		return reflect.Value{}
	}
	return rv.MethodByName(name)
}

func typeName(v any) string {
	if v == nil {
		return "<nil>"
	}
	return reflect.TypeOf(v).String()
}
