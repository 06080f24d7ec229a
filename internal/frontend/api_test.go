package frontend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gurrpi/codechain-agent-hub/internal/agent"
	"github.com/gurrpi/codechain-agent-hub/internal/domain"
	"github.com/gurrpi/codechain-agent-hub/internal/logs"
	"github.com/gurrpi/codechain-agent-hub/internal/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDB struct {
	mu          sync.Mutex
	states      []domain.AgentQueryResult
	connections []domain.Connection
	extras      map[string]*domain.AgentExtra
}

func newFakeDB() *fakeDB {
	return &fakeDB{extras: map[string]*domain.AgentExtra{}}
}

func (f *fakeDB) GetAgentsState(ctx context.Context) ([]domain.AgentQueryResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.states, nil
}

func (f *fakeDB) GetConnections(ctx context.Context) ([]domain.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connections, nil
}

func (f *fakeDB) GetAgentQueryResult(ctx context.Context, name string) (*domain.AgentQueryResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.states {
		if f.states[i].Name == name {
			return &f.states[i], nil
		}
	}
	return nil, nil
}

func (f *fakeDB) GetAgentExtra(ctx context.Context, name string) (*domain.AgentExtra, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.extras[name], nil
}

func (f *fakeDB) SaveStartOption(ctx context.Context, name, env, args string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.extras[name] = &domain.AgentExtra{PrevEnv: env, PrevArgs: args}
	return nil
}

type fakeHandle struct {
	name  string
	err   error
	calls atomic.Int32

	mu      sync.Mutex
	started []domain.ShellStartCodeChainRequest
	updated []domain.ShellUpdateCodeChainRequest
}

func (h *fakeHandle) Name() string { return h.name }

func (h *fakeHandle) StartCodeChain(ctx context.Context, req domain.ShellStartCodeChainRequest) error {
	h.calls.Add(1)
	if h.err != nil {
		return h.err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.started = append(h.started, req)
	return nil
}

func (h *fakeHandle) StopCodeChain(ctx context.Context) error {
	h.calls.Add(1)
	return h.err
}

func (h *fakeHandle) UpdateCodeChain(ctx context.Context, req domain.ShellUpdateCodeChainRequest) error {
	h.calls.Add(1)
	if h.err != nil {
		return h.err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.updated = append(h.updated, req)
	return nil
}

func (h *fakeHandle) GetCodeChainLog(ctx context.Context) (string, error) {
	h.calls.Add(1)
	return "codechain log", h.err
}

func (h *fakeHandle) GetInfo(ctx context.Context) (*domain.AgentInfo, error) {
	h.calls.Add(1)
	return &domain.AgentInfo{Name: h.name}, h.err
}

type fakeAgents struct {
	handles map[string]*fakeHandle
	lookups atomic.Int32
}

func (f *fakeAgents) GetAgent(name string) (agent.Handle, bool) {
	f.lookups.Add(1)
	h, ok := f.handles[name]
	if !ok {
		return nil, false
	}
	return h, true
}

func (f *fakeAgents) remoteCalls() int32 {
	var n int32
	for _, h := range f.handles {
		n += h.calls.Load()
	}
	return n
}

type fixture struct {
	router *rpc.Router[Context]
	db     *fakeDB
	agents *fakeAgents
}

func newFixture(handles ...*fakeHandle) *fixture {
	f := &fixture{
		router: NewRouter(),
		db:     newFakeDB(),
		agents: &fakeAgents{handles: map[string]*fakeHandle{}},
	}
	for _, h := range handles {
		f.agents.handles[h.name] = h
	}
	return f
}

func (f *fixture) context() Context {
	return Context{
		DB:         f.db,
		Agents:     f.agents,
		Logs:       logs.NewPlaceholder(),
		LogOptions: logs.DefaultQueryOptions(),
	}
}

func (f *fixture) call(t *testing.T, method string, params string) (json.RawMessage, *rpc.Error) {
	t.Helper()
	var raw json.RawMessage
	if params != "" {
		raw = json.RawMessage(params)
	}
	return f.router.Dispatch(context.Background(), method, f.context(), raw)
}

func TestRegisteredMethods(t *testing.T) {
	r := NewRouter()
	assert.ElementsMatch(t, []string{
		"ping", "node_getInfo", "dashboard_getNetwork", "node_start", "node_stop",
		"node_update", "shell_getCodeChainLog", "log_getTypes", "log_get",
	}, r.Methods())
}

func TestPing(t *testing.T) {
	f := newFixture()
	result, err := f.call(t, "ping", "")
	require.Nil(t, err)
	assert.JSONEq(t, `"pong"`, string(result))
}

func TestUnknownNodeShortCircuits(t *testing.T) {
	f := newFixture(&fakeHandle{name: "n1"})
	cases := []struct {
		method string
		params string
	}{
		{"node_getInfo", `["ghost"]`},
		{"node_start", `["ghost", {"env":"E","args":"A","target":"T"}]`},
		{"node_stop", `["ghost"]`},
		{"node_update", `["ghost", "H"]`},
		{"shell_getCodeChainLog", `["ghost"]`},
	}
	for _, tc := range cases {
		t.Run(tc.method, func(t *testing.T) {
			_, err := f.call(t, tc.method, tc.params)
			require.NotNil(t, err)
			assert.Equal(t, rpc.KindAgentNotFound, err.Kind)
		})
	}
	assert.Zero(t, f.agents.remoteCalls())
	_, ok := f.db.extras["ghost"]
	assert.False(t, ok)
}

func TestStartThenUpdateReplaysStartOption(t *testing.T) {
	h := &fakeHandle{name: "n1"}
	f := newFixture(h)

	_, err := f.call(t, "node_start", `["n1", {"env":"E","args":"A","target":"T"}]`)
	require.Nil(t, err)
	require.Len(t, h.started, 1)
	assert.Equal(t, domain.ShellStartCodeChainRequest{Env: "E", Args: "A", Target: "T"}, h.started[0])

	result, err := f.call(t, "node_update", `["n1", "H"]`)
	require.Nil(t, err)
	assert.Equal(t, "null", string(result))
	require.Len(t, h.updated, 1)
	assert.Equal(t, domain.ShellUpdateCodeChainRequest{Env: "E", Args: "A", CommitHash: "H"}, h.updated[0])
}

func TestUpdateWithoutStartOptionUsesEmptyStrings(t *testing.T) {
	h := &fakeHandle{name: "n2"}
	f := newFixture(h)

	_, err := f.call(t, "node_update", `["n2", "H"]`)
	require.Nil(t, err)
	require.Len(t, h.updated, 1)
	assert.Equal(t, domain.ShellUpdateCodeChainRequest{Env: "", Args: "", CommitHash: "H"}, h.updated[0])
}

func TestFailedStartDoesNotSaveStartOption(t *testing.T) {
	cause := errors.New("binary missing")
	h := &fakeHandle{name: "n1", err: cause}
	f := newFixture(h)

	_, err := f.call(t, "node_start", `["n1", {"env":"E","args":"A"}]`)
	require.NotNil(t, err)
	assert.Equal(t, rpc.KindAgentError, err.Kind)
	assert.ErrorIs(t, err, cause)
	assert.Nil(t, f.db.extras["n1"])
	assert.Equal(t, int32(1), h.calls.Load())
}

func TestAgentErrorsPropagate(t *testing.T) {
	cause := &agent.CommandError{Node: "n1", Method: agent.MethodStopCodeChain, Err: errors.New("timeout")}
	f := newFixture(&fakeHandle{name: "n1", err: cause})

	for _, tc := range []struct{ method, params string }{
		{"node_stop", `["n1"]`},
		{"node_update", `["n1", "H"]`},
		{"shell_getCodeChainLog", `["n1"]`},
	} {
		_, err := f.call(t, tc.method, tc.params)
		require.NotNil(t, err, tc.method)
		assert.Equal(t, rpc.KindAgentError, err.Kind)
		var cmdErr *agent.CommandError
		assert.ErrorAs(t, err, &cmdErr)
	}
}

func TestShellGetCodeChainLog(t *testing.T) {
	f := newFixture(&fakeHandle{name: "n1"})
	result, err := f.call(t, "shell_getCodeChainLog", `["n1"]`)
	require.Nil(t, err)
	assert.JSONEq(t, `"codechain log"`, string(result))
}

func TestNodeGetInfo(t *testing.T) {
	f := newFixture()
	best := int64(12)
	f.db.states = []domain.AgentQueryResult{{Name: "n1", Status: domain.NodeStatusRun, Address: "1.2.3.4:3485", BestBlockNumber: &best}}

	result, err := f.call(t, "node_getInfo", `["n1"]`)
	require.Nil(t, err)
	var info NodeGetInfoResponse
	require.NoError(t, json.Unmarshal(result, &info))
	assert.Equal(t, "n1", info.Name)
	assert.Equal(t, domain.NodeStatusRun, info.Status)
	assert.Nil(t, info.StartOption)
	require.NotNil(t, info.BestBlockNumber)
	assert.Equal(t, int64(12), *info.BestBlockNumber)

	f.db.extras["n1"] = &domain.AgentExtra{PrevEnv: "E", PrevArgs: "A"}
	result, err = f.call(t, "node_getInfo", `["n1"]`)
	require.Nil(t, err)
	require.NoError(t, json.Unmarshal(result, &info))
	assert.Equal(t, &StartOption{Env: "E", Args: "A"}, info.StartOption)
}

func TestNodeGetInfoReadsStoredStateWithoutLiveAgent(t *testing.T) {
	f := newFixture()
	f.db.states = []domain.AgentQueryResult{{Name: "n1", Status: domain.NodeStatusError}}

	result, err := f.call(t, "node_getInfo", `["n1"]`)
	require.Nil(t, err)
	var info NodeGetInfoResponse
	require.NoError(t, json.Unmarshal(result, &info))
	assert.Equal(t, "n1", info.Name)
	assert.Equal(t, domain.NodeStatusError, info.Status)

	_, err = f.call(t, "node_getInfo", `["ghost"]`)
	require.NotNil(t, err)
	assert.Equal(t, rpc.KindAgentNotFound, err.Kind)

	assert.Zero(t, f.agents.lookups.Load())
	assert.Zero(t, f.agents.remoteCalls())
}

func TestDashboardGetNetworkEmpty(t *testing.T) {
	f := newFixture()
	result, err := f.call(t, "dashboard_getNetwork", "")
	require.Nil(t, err)
	assert.JSONEq(t, `{"nodes":[],"connections":[]}`, string(result))
}

func TestDashboardGetNetwork(t *testing.T) {
	f := newFixture()
	f.db.states = []domain.AgentQueryResult{
		{Name: "n1", Status: domain.NodeStatusRun},
		{Name: "n2", Status: domain.NodeStatusStop},
	}
	f.db.connections = []domain.Connection{{NodeA: "n1", NodeB: "n2"}}

	result, err := f.call(t, "dashboard_getNetwork", "[]")
	require.Nil(t, err)
	assert.JSONEq(t, `{
		"nodes":[{"name":"n1","status":"Run"},{"name":"n2","status":"Stop"}],
		"connections":[{"nodeA":"n1","nodeB":"n2"}]
	}`, string(result))
}

func TestLogGetTypesIsFixed(t *testing.T) {
	f := newFixture()
	for i := 0; i < 3; i++ {
		result, err := f.call(t, "log_getTypes", "")
		require.Nil(t, err)
		assert.JSONEq(t, `{"types":["miner","tendermint","engine"]}`, string(result))
	}
}

func TestLogGetPageSize(t *testing.T) {
	f := newFixture()
	cases := []struct {
		params string
		want   int
	}{
		{`[{"itemPerPage":10}]`, 10},
		{`[{}]`, 100},
		{`[{"itemPerPage":0}]`, 0},
		{`[{"itemPerPage":100000}]`, 1000},
	}
	for _, tc := range cases {
		t.Run(tc.params, func(t *testing.T) {
			result, err := f.call(t, "log_get", tc.params)
			require.Nil(t, err)
			var resp LogGetResponse
			require.NoError(t, json.Unmarshal(result, &resp))
			assert.Len(t, resp.Logs, tc.want)
			assert.NotNil(t, resp.Logs)
		})
	}

	_, err := f.call(t, "log_get", `[{"itemPerPage":-1}]`)
	require.NotNil(t, err)
	assert.Equal(t, rpc.KindInvalidParams, err.Kind)
}

func TestConcurrentMixedDispatch(t *testing.T) {
	h := &fakeHandle{name: "n1"}
	f := newFixture(h)
	f.db.states = []domain.AgentQueryResult{{Name: "n1", Status: domain.NodeStatusRun}}
	before := f.router.Methods()

	calls := []struct {
		method, params string
		ok             bool
	}{
		{"ping", ``, true},
		{"node_getInfo", `["n1"]`, true},
		{"dashboard_getNetwork", ``, true},
		{"node_start", `["n1", {"env":"E","args":"A"}]`, true},
		{"node_stop", `["n1"]`, true},
		{"node_update", `["n1", "H"]`, true},
		{"node_stop", `["ghost"]`, false},
		{"shell_getCodeChainLog", `["n1"]`, true},
		{"log_getTypes", ``, true},
		{"log_get", `[{"itemPerPage":3}]`, true},
		{"missing", ``, false},
	}

	var contexts atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 1000; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := calls[i%len(calls)]
			body := fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"method":%q}`, i, c.method)
			if c.params != "" {
				body = fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"method":%q,"params":%s}`, i, c.method, c.params)
			}
			out := f.router.Serve(context.Background(), []byte(body), func() Context {
				contexts.Add(1)
				return f.context()
			})
			var resp rpc.Response
			if err := json.Unmarshal(out, &resp); err != nil {
				t.Error(err)
				return
			}
			if string(resp.ID) != fmt.Sprint(i) {
				t.Errorf("response %s for request %d", resp.ID, i)
			}
			if c.ok != (resp.Error == nil) {
				t.Errorf("%s: unexpected error %+v", c.method, resp.Error)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1000), contexts.Load())
	assert.Equal(t, before, f.router.Methods())

	perMethod := 1000 / len(calls)
	h.mu.Lock()
	defer h.mu.Unlock()
	assert.GreaterOrEqual(t, len(h.started), perMethod)
	assert.GreaterOrEqual(t, len(h.updated), perMethod)
	for _, req := range h.updated {
		assert.Equal(t, "H", req.CommitHash)
		assert.Contains(t, []string{"", "E"}, req.Env)
	}
	assert.Equal(t, &domain.AgentExtra{PrevEnv: "E", PrevArgs: "A"}, f.db.extras["n1"])
}
