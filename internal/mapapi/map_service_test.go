package mapapi

import (
	"context"
	"math"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/libya-atlas/core"
	"github.com/signalsfoundry/libya-atlas/internal/logging"
	"github.com/signalsfoundry/libya-atlas/internal/observability"
	"github.com/signalsfoundry/libya-atlas/internal/view/state"
	"github.com/signalsfoundry/libya-atlas/kb"
	"github.com/signalsfoundry/libya-atlas/timectrl"
)

type mapTestEnv struct {
	ctx       context.Context
	client    *MapServiceClient
	registry  *state.Registry
	collector *observability.ServiceCollector
}

func newMapTestEnv(t *testing.T, opts ...state.DispatcherOption) *mapTestEnv {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)

	store := kb.NewKnowledgeBase()
	if err := store.Load(core.FallbackMunicipalities(), nil); err != nil {
		cancel()
		t.Fatalf("Load: %v", err)
	}
	registry := state.NewRegistry(state.NewDispatcher(store, opts...))

	collector, err := observability.NewServiceCollector(prometheus.NewRegistry())
	if err != nil {
		cancel()
		t.Fatalf("NewServiceCollector: %v", err)
	}

	lis := bufconn.Listen(1 << 20)
	server := NewServer(NewMapService(registry, store, logging.Noop()), collector, logging.Noop())
	go func() {
		_ = server.Serve(lis)
	}()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		cancel()
		t.Fatalf("grpc.NewClient: %v", err)
	}

	t.Cleanup(func() {
		_ = conn.Close()
		server.GracefulStop()
		cancel()
	})
	return &mapTestEnv{ctx: ctx, client: NewMapServiceClient(conn), registry: registry, collector: collector}
}

func (env *mapTestEnv) create(t *testing.T) string {
	t.Helper()
	resp, err := env.client.CreateSession(env.ctx, mustStruct(t, map[string]any{"width": 1000, "height": 700}))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	id := resp.GetFields()[fieldSessionID].GetStringValue()
	if id == "" {
		t.Fatalf("CreateSession returned no session id")
	}
	return id
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	return s
}

func TestCreateSessionReturnsInitialScene(t *testing.T) {
	env := newMapTestEnv(t)
	resp, err := env.client.CreateSession(env.ctx, mustStruct(t, map[string]any{}))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	scene, err := SceneFromStruct(resp.GetFields()[fieldScene].GetStructValue())
	if err != nil {
		t.Fatalf("SceneFromStruct: %v", err)
	}
	if scene.Width != 1000 || scene.Height != 700 || len(scene.Markers) != 3 {
		t.Fatalf("scene %vx%v with %d markers", scene.Width, scene.Height, len(scene.Markers))
	}
	if env.registry.Len() != 1 {
		t.Fatalf("registry len = %d, want 1", env.registry.Len())
	}
}

func TestDispatchSelectOverRPC(t *testing.T) {
	env := newMapTestEnv(t)
	id := env.create(t)

	event, err := EventToStruct(state.Event{Type: state.EventSelect, Name: "بنغازي"})
	if err != nil {
		t.Fatalf("EventToStruct: %v", err)
	}
	resp, err := env.client.Dispatch(env.ctx, &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldSessionID: structpb.NewStringValue(id),
		fieldEvent:     structpb.NewStructValue(event),
	}})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	scene, err := SceneFromStruct(resp)
	if err != nil {
		t.Fatalf("SceneFromStruct: %v", err)
	}
	if scene.Info == nil || scene.Info.Name != "بنغازي" || scene.Label == nil {
		t.Fatalf("info %+v label %+v", scene.Info, scene.Label)
	}
	if scene.Revision != 1 {
		t.Fatalf("revision = %d, want 1", scene.Revision)
	}

	got, err := env.client.GetScene(env.ctx, mustStruct(t, map[string]any{"session_id": id}))
	if err != nil {
		t.Fatalf("GetScene: %v", err)
	}
	again, _ := SceneFromStruct(got)
	if again.Selection.Municipality != "بنغازي" {
		t.Fatalf("selection = %+v", again.Selection)
	}

	if n := testutil.ToFloat64(env.collector.RPCRequests.WithLabelValues("MapService", "Dispatch", codes.OK.String())); n != 1 {
		t.Fatalf("dispatch rpc count = %v, want 1", n)
	}
}

func TestDispatchErrorsMapToStatusCodes(t *testing.T) {
	env := newMapTestEnv(t)
	id := env.create(t)

	cases := []struct {
		name string
		req  map[string]any
		code codes.Code
	}{
		{"missing session id", map[string]any{"event": map[string]any{"type": "clear"}}, codes.InvalidArgument},
		{"unknown session", map[string]any{"session_id": "nope", "event": map[string]any{"type": "clear"}}, codes.NotFound},
		{"missing event", map[string]any{"session_id": id}, codes.InvalidArgument},
		{"unknown municipality", map[string]any{"session_id": id, "event": map[string]any{"type": "select", "name": "atlantis"}}, codes.NotFound},
		{"invalid event", map[string]any{"session_id": id, "event": map[string]any{"type": "teleport"}}, codes.InvalidArgument},
		{"client frame", map[string]any{"session_id": id, "event": map[string]any{"type": "frame"}}, codes.InvalidArgument},
	}
	for _, tc := range cases {
		_, err := env.client.Dispatch(env.ctx, mustStruct(t, tc.req))
		if status.Code(err) != tc.code {
			t.Fatalf("%s: code = %v (%v), want %v", tc.name, status.Code(err), err, tc.code)
		}
	}
}

func TestDispatchIgnoresClientTimestamp(t *testing.T) {
	clock := timectrl.NewTimeController(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 16*time.Millisecond, timectrl.Manual)
	env := newMapTestEnv(t, state.WithClock(clock))
	clock.AddListener(env.registry.Tick)
	id := env.create(t)

	_, err := env.client.Dispatch(env.ctx, mustStruct(t, map[string]any{
		"session_id": id,
		"event":      map[string]any{"type": "zoom_in", "at": "2100-01-01T00:00:00Z"},
	}))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	clock.Advance(time.Second)

	resp, err := env.client.GetScene(env.ctx, mustStruct(t, map[string]any{"session_id": id}))
	if err != nil {
		t.Fatalf("GetScene: %v", err)
	}
	scene, err := SceneFromStruct(resp)
	if err != nil {
		t.Fatalf("SceneFromStruct: %v", err)
	}
	if scene.Animating {
		t.Fatalf("zoom still animating after one second of frames")
	}
	if math.Abs(scene.Transform.K-core.ZoomStep) > 1e-9 {
		t.Fatalf("K = %v, want %v", scene.Transform.K, core.ZoomStep)
	}
}

func TestCloseSessionOverRPC(t *testing.T) {
	env := newMapTestEnv(t)
	id := env.create(t)
	req := mustStruct(t, map[string]any{"session_id": id})

	if _, err := env.client.CloseSession(env.ctx, req); err != nil {
		t.Fatalf("CloseSession: %v", err)
	}
	if _, err := env.client.CloseSession(env.ctx, req); status.Code(err) != codes.NotFound {
		t.Fatalf("second CloseSession code = %v, want NotFound", status.Code(err))
	}
	if _, err := env.client.GetScene(env.ctx, req); status.Code(err) != codes.NotFound {
		t.Fatalf("GetScene after close code = %v, want NotFound", status.Code(err))
	}
}

func TestCreateSessionRejectsBadSurface(t *testing.T) {
	env := newMapTestEnv(t)
	_, err := env.client.CreateSession(env.ctx, mustStruct(t, map[string]any{"width": -5, "height": 10}))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("code = %v, want InvalidArgument", status.Code(err))
	}
}

func TestUninitialisedServiceFailsPrecondition(t *testing.T) {
	var svc *MapService
	if _, err := svc.GetScene(context.Background(), nil); status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("code = %v, want FailedPrecondition", status.Code(err))
	}
}
