// Package agent issues typed commands to node controllers through their
// agent link and serializes mutating commands per node.
package agent

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gurrpi/codechain-agent-hub/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Remote method names understood by node controllers.
const (
	MethodStartCodeChain  = "shell_startCodeChain"
	MethodStopCodeChain   = "shell_stopCodeChain"
	MethodUpdateCodeChain = "shell_updateCodeChain"
	MethodGetCodeChainLog = "shell_getCodeChainLog"
	MethodGetInfo         = "agent_getInfo"
)

// ErrAgentNotFound is returned when no controller is connected under a name.
var ErrAgentNotFound = errors.New("agent not found")

// Caller performs one request/response exchange with a node controller.
type Caller interface {
	Call(ctx context.Context, method string, params any, result any) error
}

// Directory resolves connected node controllers by name.
type Directory interface {
	Lookup(name string) (Caller, bool)
	Names() []string
}

// Handle is the command surface of one node.
type Handle interface {
	Name() string
	StartCodeChain(ctx context.Context, req domain.ShellStartCodeChainRequest) error
	StopCodeChain(ctx context.Context) error
	UpdateCodeChain(ctx context.Context, req domain.ShellUpdateCodeChainRequest) error
	GetCodeChainLog(ctx context.Context) (string, error)
	GetInfo(ctx context.Context) (*domain.AgentInfo, error)
}

// Service hands out node handles backed by the directory.
type Service struct {
	dir     Directory
	timeout time.Duration
	logger  *zap.Logger

	mu    sync.Mutex
	locks map[string]*semaphore.Weighted
}

// NewService creates a Service. A non-positive timeout leaves commands bounded
// only by the controller link.
func NewService(dir Directory, timeout time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		dir:     dir,
		timeout: timeout,
		logger:  logger,
		locks:   make(map[string]*semaphore.Weighted),
	}
}

// GetAgent returns the handle for a connected node.
func (s *Service) GetAgent(name string) (Handle, bool) {
	caller, ok := s.dir.Lookup(name)
	if !ok {
		return nil, false
	}
	return &Proxy{
		name:    name,
		caller:  caller,
		lock:    s.nodeLock(name),
		timeout: s.timeout,
		logger:  s.logger.With(zap.String("node", name)),
	}, true
}

// Resolve is GetAgent returning ErrAgentNotFound for unknown names.
func (s *Service) Resolve(name string) (Handle, error) {
	h, ok := s.GetAgent(name)
	if !ok {
		return nil, ErrAgentNotFound
	}
	return h, nil
}

// Names lists connected nodes.
func (s *Service) Names() []string {
	return s.dir.Names()
}

// nodeLock returns the command lock of a node. Creating a lock also drops
// idle locks of nodes that are no longer connected.
func (s *Service) nodeLock(name string) *semaphore.Weighted {
	s.mu.Lock()
	lock, ok := s.locks[name]
	s.mu.Unlock()
	if ok {
		return lock
	}

	connected := make(map[string]bool)
	for _, n := range s.dir.Names() {
		connected[n] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for n, l := range s.locks {
		if connected[n] || n == name {
			continue
		}
		if l.TryAcquire(1) {
			l.Release(1)
			delete(s.locks, n)
		}
	}
	lock, ok = s.locks[name]
	if !ok {
		lock = semaphore.NewWeighted(1)
		s.locks[name] = lock
	}
	return lock
}
