package cube

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/toio-bridge/internal/ble"
	"github.com/nerrad567/toio-bridge/internal/toio"
)

func newTestRegistry(t *testing.T, cubes ...*ble.SimCube) (*Registry, *ble.Simulator) {
	t.Helper()
	sim := ble.NewSimulator(cubes...)
	return NewRegistry(sim, Options{ConnectScanNum: 10, ConnectScanTimeout: time.Second}), sim
}

type recordingObserver struct {
	mu     sync.Mutex
	opened []SessionInfo
	closed []SessionInfo
	errs   []error
}

func (o *recordingObserver) SessionOpened(info SessionInfo) {
	o.mu.Lock()
	o.opened = append(o.opened, info)
	o.mu.Unlock()
}

func (o *recordingObserver) SessionClosed(info SessionInfo, err error) {
	o.mu.Lock()
	o.closed = append(o.closed, info)
	o.errs = append(o.errs, err)
	o.mu.Unlock()
}

func TestRegistry_Scan(t *testing.T) {
	reg, _ := newTestRegistry(t,
		ble.NewSimCube("AA:01", "toio Core Cube-a", -40),
		ble.NewSimCube("AA:02", "toio Core Cube-b", -60),
	)

	found, err := reg.Scan(context.Background(), 1, time.Second)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(found) != 1 || found[0].Address != "AA:01" {
		t.Errorf("Scan(1) = %+v, want first cube only", found)
	}

	found, err = reg.Scan(context.Background(), 5, time.Second)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(found) != 2 {
		t.Errorf("Scan(5) returned %d cubes, want 2", len(found))
	}
}

func TestRegistry_ScanValidation(t *testing.T) {
	reg, _ := newTestRegistry(t)

	tests := []struct {
		name    string
		num     int
		timeout time.Duration
	}{
		{"zero num", 0, time.Second},
		{"negative num", -1, time.Second},
		{"zero timeout", 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := reg.Scan(context.Background(), tt.num, tt.timeout)
			if KindOf(err) != KindInvalidArgument {
				t.Errorf("Scan() kind = %q, want %q (err %v)", KindOf(err), KindInvalidArgument, err)
			}
		})
	}
}

func TestRegistry_ScanErrors(t *testing.T) {
	reg, sim := newTestRegistry(t)

	sim.SetScanError(errors.New("adapter off"))
	_, err := reg.Scan(context.Background(), 1, time.Second)
	if !errors.Is(err, ErrDevice) {
		t.Errorf("Scan() with failing adapter = %v, want device error", err)
	}

	sim.SetScanError(nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()
	_, err = reg.Scan(ctx, 1, time.Second)
	if !errors.Is(err, ErrDiscoveryTimeout) {
		t.Errorf("Scan() after deadline = %v, want discovery timeout", err)
	}
}

func TestRegistry_ConnectAssignsSequentialIDs(t *testing.T) {
	reg, _ := newTestRegistry(t,
		ble.NewSimCube("AA:01", "a", -40),
		ble.NewSimCube("AA:02", "b", -40),
	)
	ctx := context.Background()

	first, err := reg.Connect(ctx, "AA:01")
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	second, err := reg.Connect(ctx, "AA:02")
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if first != "cube_1" || second != "cube_2" {
		t.Errorf("ids = %q, %q; want cube_1, cube_2", first, second)
	}
	if got := reg.List(); len(got) != 2 || got[0] != "cube_1" || got[1] != "cube_2" {
		t.Errorf("List() = %v", got)
	}
}

func TestRegistry_ConnectIsIdempotent(t *testing.T) {
	reg, sim := newTestRegistry(t, ble.NewSimCube("AA:01", "a", -40))
	ctx := context.Background()

	first, err := reg.Connect(ctx, "AA:01")
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	scans, dials := sim.Scans(), sim.Dials()

	again, err := reg.Connect(ctx, "AA:01")
	if err != nil {
		t.Fatalf("second Connect() error = %v", err)
	}
	if again != first {
		t.Errorf("second Connect() = %q, want %q", again, first)
	}
	if sim.Scans() != scans || sim.Dials() != dials {
		t.Errorf("second Connect() touched the radio: scans %d->%d dials %d->%d",
			scans, sim.Scans(), dials, sim.Dials())
	}
	if reg.Count() != 1 {
		t.Errorf("Count() = %d, want 1", reg.Count())
	}
}

func TestRegistry_ConcurrentConnectSameDevice(t *testing.T) {
	reg, sim := newTestRegistry(t, ble.NewSimCube("AA:01", "a", -40))
	sim.SetDialDelay(50 * time.Millisecond)

	const callers = 8
	ids := make([]string, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i], errs[i] = reg.Connect(context.Background(), "AA:01")
		}(i)
	}
	wg.Wait()

	for i := range callers {
		if errs[i] != nil {
			t.Fatalf("Connect() #%d error = %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Errorf("Connect() #%d = %q, want %q", i, ids[i], ids[0])
		}
	}
	if sim.Dials() != 1 {
		t.Errorf("Dials() = %d, want 1", sim.Dials())
	}
	if reg.Count() != 1 {
		t.Errorf("Count() = %d, want 1", reg.Count())
	}
}

func TestRegistry_ConnectCallerCancelDoesNotFailOthers(t *testing.T) {
	reg, sim := newTestRegistry(t, ble.NewSimCube("AA:01", "a", -40))
	sim.SetDialDelay(200 * time.Millisecond)

	firstCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	firstErr := make(chan error, 1)
	go func() {
		_, err := reg.Connect(firstCtx, "AA:01")
		firstErr <- err
	}()
	time.Sleep(20 * time.Millisecond)

	type result struct {
		id  string
		err error
	}
	second := make(chan result, 1)
	go func() {
		id, err := reg.Connect(context.Background(), "AA:01")
		second <- result{id, err}
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()

	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled Connect() error = %v, want context.Canceled", err)
	}

	got := <-second
	if got.err != nil {
		t.Fatalf("Connect() with live context error = %v", got.err)
	}
	if got.id != "cube_1" {
		t.Errorf("Connect() = %q, want cube_1", got.id)
	}
	if sim.Dials() != 1 {
		t.Errorf("Dials() = %d, want 1", sim.Dials())
	}
	if id, ok := reg.lookupDevice("AA:01"); !ok || id != "cube_1" {
		t.Errorf("device maps to %q (%v), want cube_1", id, ok)
	}
}

func TestRegistry_ConcurrentConnectDistinctDevices(t *testing.T) {
	const n = 6
	cubes := make([]*ble.SimCube, n)
	for i := range cubes {
		cubes[i] = ble.NewSimCube(fmt.Sprintf("AA:%02d", i), "cube", -50)
	}
	reg, _ := newTestRegistry(t, cubes...)

	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := reg.Connect(context.Background(), cubes[i].Address)
			if err != nil {
				t.Errorf("Connect(%s) error = %v", cubes[i].Address, err)
			}
			ids[i] = id
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for _, id := range ids {
		if seen[id] {
			t.Errorf("session id %q assigned twice", id)
		}
		seen[id] = true
	}
	if reg.Count() != n {
		t.Errorf("Count() = %d, want %d", reg.Count(), n)
	}
}

func TestRegistry_ConnectUnknownDevice(t *testing.T) {
	reg, sim := newTestRegistry(t, ble.NewSimCube("AA:01", "a", -40))

	_, err := reg.Connect(context.Background(), "FF:FF")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Connect() error = %v, want not found", err)
	}
	if err.Error() != "Device with ID FF:FF not found" {
		t.Errorf("message = %q", err.Error())
	}
	if sim.Dials() != 0 {
		t.Errorf("Dials() = %d, want 0", sim.Dials())
	}
	if reg.Count() != 0 {
		t.Errorf("registry not empty after failed connect")
	}
}

func TestRegistry_ConnectEmptyDeviceID(t *testing.T) {
	reg, _ := newTestRegistry(t)
	if _, err := reg.Connect(context.Background(), ""); KindOf(err) != KindInvalidArgument {
		t.Errorf("Connect(\"\") kind = %q, want invalid_argument", KindOf(err))
	}
}

func TestRegistry_GetAndDisconnect(t *testing.T) {
	sc := ble.NewSimCube("AA:01", "a", -40)
	reg, _ := newTestRegistry(t, sc)
	obs := &recordingObserver{}
	reg.SetObserver(obs)
	ctx := context.Background()

	id, err := reg.Connect(ctx, "AA:01")
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if _, ok := reg.Get(id); !ok {
		t.Fatalf("Get(%q) not found after connect", id)
	}

	if !reg.Disconnect(ctx, id) {
		t.Fatalf("Disconnect(%q) = false", id)
	}
	if _, ok := reg.Get(id); ok {
		t.Error("Get() still finds a disconnected session")
	}
	if sc.Connected() {
		t.Error("link still open after Disconnect")
	}
	if reg.Disconnect(ctx, id) {
		t.Error("second Disconnect() = true, want false")
	}
	if reg.Disconnect(ctx, "cube_999") {
		t.Error("Disconnect(unknown) = true, want false")
	}

	if len(obs.opened) != 1 || len(obs.closed) != 1 {
		t.Fatalf("observer saw %d opens, %d closes", len(obs.opened), len(obs.closed))
	}
	if obs.opened[0].State != StateConnected {
		t.Errorf("opened state = %q", obs.opened[0].State)
	}
	if obs.closed[0].State != StateDisconnected {
		t.Errorf("closed state = %q", obs.closed[0].State)
	}
}

func TestRegistry_IDsAreNotReused(t *testing.T) {
	reg, _ := newTestRegistry(t, ble.NewSimCube("AA:01", "a", -40))
	ctx := context.Background()

	first, _ := reg.Connect(ctx, "AA:01")
	reg.Disconnect(ctx, first)
	second, err := reg.Connect(ctx, "AA:01")
	if err != nil {
		t.Fatalf("reconnect error = %v", err)
	}
	if second == first {
		t.Errorf("reconnect reused id %q", first)
	}
}

func TestRegistry_DisconnectCloseFailure(t *testing.T) {
	sc := ble.NewSimCube("AA:01", "a", -40)
	sc.SetCloseError(errors.New("link lost"))
	reg, _ := newTestRegistry(t, sc)
	ctx := context.Background()

	id, _ := reg.Connect(ctx, "AA:01")
	if reg.Disconnect(ctx, id) {
		t.Error("Disconnect() = true for failed close")
	}
	if reg.Count() != 0 {
		t.Error("session kept after failed close")
	}
}

func TestRegistry_DisconnectWithCancelledContext(t *testing.T) {
	reg, _ := newTestRegistry(t, ble.NewSimCube("AA:01", "a", -40))
	obs := &recordingObserver{}
	reg.SetObserver(obs)

	id, err := reg.Connect(context.Background(), "AA:01")
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if !reg.Disconnect(ctx, id) {
		t.Fatal("Disconnect() = false with a cancelled context")
	}

	obs.mu.Lock()
	defer obs.mu.Unlock()
	if len(obs.closed) != 1 {
		t.Fatalf("observer saw %d closes, want 1", len(obs.closed))
	}
	if obs.closed[0].State != StateDisconnected {
		t.Errorf("closed session state = %q, want %q", obs.closed[0].State, StateDisconnected)
	}
}

func TestRegistry_DisconnectAll(t *testing.T) {
	good := ble.NewSimCube("AA:01", "a", -40)
	bad := ble.NewSimCube("AA:02", "b", -40)
	bad.SetCloseError(errors.New("link lost"))
	other := ble.NewSimCube("AA:03", "c", -40)
	reg, _ := newTestRegistry(t, good, bad, other)
	ctx := context.Background()

	for _, addr := range []string{"AA:01", "AA:02", "AA:03"} {
		if _, err := reg.Connect(ctx, addr); err != nil {
			t.Fatalf("Connect(%s) error = %v", addr, err)
		}
	}

	err := reg.DisconnectAll(ctx)
	if err == nil {
		t.Error("DisconnectAll() error = nil, want close failure")
	}
	if reg.Count() != 0 {
		t.Errorf("Count() = %d after DisconnectAll", reg.Count())
	}
	if good.Connected() || other.Connected() {
		t.Error("healthy links left open")
	}

	if err := reg.DisconnectAll(ctx); err != nil {
		t.Errorf("DisconnectAll() on empty registry = %v", err)
	}
}

func TestRegistry_Sessions(t *testing.T) {
	reg, _ := newTestRegistry(t, ble.NewSimCube("AA:01", "toio Core Cube-x", -40))
	id, _ := reg.Connect(context.Background(), "AA:01")

	infos := reg.Sessions()
	if len(infos) != 1 {
		t.Fatalf("Sessions() len = %d", len(infos))
	}
	got := infos[0]
	if got.ID != id || got.DeviceID != "AA:01" || got.Name != "toio Core Cube-x" || got.State != StateConnected {
		t.Errorf("Sessions()[0] = %+v", got)
	}
	if got.ConnectedAt.IsZero() {
		t.Error("ConnectedAt not set")
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"not found", CubeNotFound("cube_1"), KindNotFound},
		{"wrapped", fmt.Errorf("ctx: %w", NotRegistered("cube_1")), KindNotRegistered},
		{"encoder", fmt.Errorf("%w: speed", toio.ErrInvalidArgument), KindInvalidArgument},
		{"link", fmt.Errorf("%w: write", toio.ErrLinkFailure), KindDevice},
		{"closed", toio.ErrClosed, KindDevice},
		{"other", errors.New("boom"), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}
}
