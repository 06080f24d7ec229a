package agent

import (
	"context"
	"time"

	"github.com/gurrpi/codechain-agent-hub/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Proxy is the Handle for one connected node.
type Proxy struct {
	name    string
	caller  Caller
	lock    *semaphore.Weighted
	timeout time.Duration
	logger  *zap.Logger
}

// Name returns the node name.
func (p *Proxy) Name() string {
	return p.name
}

// StartCodeChain starts the CodeChain client. Commands for the node run one at a time.
func (p *Proxy) StartCodeChain(ctx context.Context, req domain.ShellStartCodeChainRequest) error {
	return p.mutate(ctx, MethodStartCodeChain, []any{req})
}

// StopCodeChain stops the CodeChain client.
func (p *Proxy) StopCodeChain(ctx context.Context) error {
	return p.mutate(ctx, MethodStopCodeChain, []any{})
}

// UpdateCodeChain restarts the client on another commit.
func (p *Proxy) UpdateCodeChain(ctx context.Context, req domain.ShellUpdateCodeChainRequest) error {
	return p.mutate(ctx, MethodUpdateCodeChain, []any{req})
}

// GetCodeChainLog returns the raw client log text.
func (p *Proxy) GetCodeChainLog(ctx context.Context) (string, error) {
	var text string
	if err := p.call(ctx, MethodGetCodeChainLog, []any{}, &text); err != nil {
		return "", err
	}
	return text, nil
}

// GetInfo asks the controller for the node's current state and peers.
func (p *Proxy) GetInfo(ctx context.Context) (*domain.AgentInfo, error) {
	var info domain.AgentInfo
	if err := p.call(ctx, MethodGetInfo, []any{}, &info); err != nil {
		return nil, err
	}
	if info.Name == "" {
		info.Name = p.name
	}
	return &info, nil
}

// mutate runs a state-changing command while holding the node lock. Commands
// for the same node queue behind each other.
func (p *Proxy) mutate(ctx context.Context, method string, params []any) error {
	ctx = context.WithoutCancel(ctx)
	if err := p.lock.Acquire(ctx, 1); err != nil {
		return &CommandError{Node: p.name, Method: method, Err: err}
	}
	defer p.lock.Release(1)
	return p.call(ctx, method, params, nil)
}

// call issues one command. A caller going away does not abort it.
func (p *Proxy) call(ctx context.Context, method string, params []any, result any) error {
	ctx = context.WithoutCancel(ctx)
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	if err := p.caller.Call(ctx, method, params, result); err != nil {
		p.logger.Warn("agent command failed",
			zap.String("method", method),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return &CommandError{Node: p.name, Method: method, Err: err}
	}
	p.logger.Debug("agent command done",
		zap.String("method", method),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}
