package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Builder collects method registrations at startup. Build freezes them into a
// Router; the builder rejects further registrations afterwards.
type Builder[C any] struct {
	mu     sync.Mutex
	routes map[string]Handler[C]
	built  bool
}

// NewBuilder creates an empty method table builder.
func NewBuilder[C any]() *Builder[C] {
	return &Builder[C]{
		routes: make(map[string]Handler[C]),
	}
}

// Register binds a method name to a handler.
func (b *Builder[C]) Register(name string, h Handler[C]) error {
	if name == "" {
		return fmt.Errorf("method name is required")
	}
	if h == nil {
		return fmt.Errorf("handler is required for %s", name)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.built {
		return fmt.Errorf("router already built, cannot register %s", name)
	}
	if _, exists := b.routes[name]; exists {
		return fmt.Errorf("method already registered: %s", name)
	}
	b.routes[name] = h
	return nil
}

// MustRegister registers a handler or panics.
func (b *Builder[C]) MustRegister(name string, h Handler[C]) {
	if err := b.Register(name, h); err != nil {
		panic(err)
	}
}

// Build returns the read-only method table.
func (b *Builder[C]) Build() *Router[C] {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.built = true
	routes := make(map[string]Handler[C], len(b.routes))
	for name, h := range b.routes {
		routes[name] = h
	}
	return &Router[C]{routes: routes}
}

// Router dispatches requests by method name. It is safe for concurrent use and
// has no mutation API.
type Router[C any] struct {
	routes map[string]Handler[C]
}

// Methods returns the registered method names in sorted order.
func (r *Router[C]) Methods() []string {
	names := make([]string, 0, len(r.routes))
	for name := range r.routes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether a method is registered.
func (r *Router[C]) Has(method string) bool {
	_, ok := r.routes[method]
	return ok
}

// Dispatch invokes the handler registered for method.
func (r *Router[C]) Dispatch(ctx context.Context, method string, c C, params json.RawMessage) (json.RawMessage, *Error) {
	start := time.Now()
	h, ok := r.routes[method]
	if !ok {
		err := MethodNotFound(method)
		observe("unknown", err, start)
		return nil, err
	}
	result, err := h.Invoke(ctx, c, params)
	observe(method, err, start)
	return result, err
}

// Handle dispatches one decoded request envelope. It returns nil for
// notifications.
func (r *Router[C]) Handle(ctx context.Context, req *Request, c C) *Response {
	if req.JSONRPC != Version || req.Method == "" {
		if req.IsNotification() {
			return nil
		}
		return NewErrorResponse(req.ID, InvalidRequest("jsonrpc must be \"2.0\" and method is required"))
	}
	result, err := r.Dispatch(ctx, req.Method, c, req.Params)
	if req.IsNotification() {
		return nil
	}
	if err != nil {
		return NewErrorResponse(req.ID, err)
	}
	return NewResultResponse(req.ID, result)
}

// Serve decodes a raw message (single request or batch), dispatches every
// request with a freshly built context, and returns the encoded reply. The
// reply is nil when only notifications were received.
func (r *Router[C]) Serve(ctx context.Context, raw []byte, newContext func() C) []byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return r.serveBatch(ctx, trimmed, newContext)
	}

	var req Request
	if err := json.Unmarshal(trimmed, &req); err != nil {
		return mustMarshal(NewErrorResponse(nil, ParseError(err)))
	}
	resp := r.Handle(ctx, &req, newContext())
	if resp == nil {
		return nil
	}
	return mustMarshal(resp)
}

func (r *Router[C]) serveBatch(ctx context.Context, raw []byte, newContext func() C) []byte {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return mustMarshal(NewErrorResponse(nil, ParseError(err)))
	}
	if len(items) == 0 {
		return mustMarshal(NewErrorResponse(nil, InvalidRequest("empty batch")))
	}

	responses := make([]*Response, len(items))
	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func(i int, item json.RawMessage) {
			defer wg.Done()
			var req Request
			if err := json.Unmarshal(item, &req); err != nil {
				responses[i] = NewErrorResponse(nil, InvalidRequest(err.Error()))
				return
			}
			responses[i] = r.Handle(ctx, &req, newContext())
		}(i, item)
	}
	wg.Wait()

	out := make([]*Response, 0, len(responses))
	for _, resp := range responses {
		if resp != nil {
			out = append(out, resp)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return mustMarshal(out)
}

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		// Responses only hold raw JSON, strings and ints.
		panic(fmt.Sprintf("marshal rpc response: %v", err))
	}
	return data
}
