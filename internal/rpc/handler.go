package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
)

// Handler is the uniform capability stored in the method table. C is the
// per-request context type handed to every handler.
type Handler[C any] interface {
	Invoke(ctx context.Context, c C, params json.RawMessage) (json.RawMessage, *Error)
}

// HandlerFunc adapts a raw function to Handler.
type HandlerFunc[C any] func(ctx context.Context, c C, params json.RawMessage) (json.RawMessage, *Error)

// Invoke implements Handler.
func (f HandlerFunc[C]) Invoke(ctx context.Context, c C, params json.RawMessage) (json.RawMessage, *Error) {
	return f(ctx, c, params)
}

// Func0 wraps a handler that takes no positional params.
func Func0[C, R any](fn func(ctx context.Context, c C) (R, error)) Handler[C] {
	return HandlerFunc[C](func(ctx context.Context, c C, params json.RawMessage) (json.RawMessage, *Error) {
		if _, err := positional(params, 0); err != nil {
			return nil, err
		}
		return encode(fn(ctx, c))
	})
}

// Func1 wraps a handler that takes one positional param.
func Func1[C, A, R any](fn func(ctx context.Context, c C, a A) (R, error)) Handler[C] {
	return HandlerFunc[C](func(ctx context.Context, c C, params json.RawMessage) (json.RawMessage, *Error) {
		args, err := positional(params, 1)
		if err != nil {
			return nil, err
		}
		a, err := decodeArg[A](args, 0)
		if err != nil {
			return nil, err
		}
		return encode(fn(ctx, c, a))
	})
}

// Func2 wraps a handler that takes two positional params.
func Func2[C, A, B, R any](fn func(ctx context.Context, c C, a A, b B) (R, error)) Handler[C] {
	return HandlerFunc[C](func(ctx context.Context, c C, params json.RawMessage) (json.RawMessage, *Error) {
		args, err := positional(params, 2)
		if err != nil {
			return nil, err
		}
		a, err := decodeArg[A](args, 0)
		if err != nil {
			return nil, err
		}
		b, err := decodeArg[B](args, 1)
		if err != nil {
			return nil, err
		}
		return encode(fn(ctx, c, a, b))
	})
}

// positional splits params into exactly n raw elements. Absent and null
// params count as an empty list.
func positional(params json.RawMessage, n int) ([]json.RawMessage, *Error) {
	var args []json.RawMessage
	if !isNull(params) {
		if err := json.Unmarshal(params, &args); err != nil {
			return nil, InvalidParams(fmt.Errorf("params must be a positional array"))
		}
	}
	if len(args) != n {
		return nil, InvalidParams(fmt.Errorf("expected %d params, got %d", n, len(args)))
	}
	return args, nil
}

func decodeArg[T any](args []json.RawMessage, i int) (T, *Error) {
	var v T
	if isNull(args[i]) && !nullable(reflect.TypeOf((*T)(nil)).Elem()) {
		return v, InvalidParams(fmt.Errorf("param %d must not be null", i))
	}
	if err := json.Unmarshal(args[i], &v); err != nil {
		return v, InvalidParams(fmt.Errorf("param %d: %w", i, err))
	}
	return v, nil
}

func nullable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return true
	}
	return false
}

func encode[R any](result R, err error) (json.RawMessage, *Error) {
	if err != nil {
		return nil, AsError(err)
	}
	data, err := json.Marshal(result)
	if err != nil {
		return nil, Internal(fmt.Errorf("encode result: %w", err))
	}
	return data, nil
}
