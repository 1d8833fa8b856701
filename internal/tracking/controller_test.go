package tracking

import (
	"context"
	"errors"
	"sync"
	"testing"

	"nuha.dev/loctrack/internal/fix"
	"nuha.dev/loctrack/internal/notify"
	"nuha.dev/loctrack/internal/provider"
)

type mockIntent struct {
	mu      sync.Mutex
	value   bool
	writes  int
	failErr error
}

func (m *mockIntent) Read(context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value, nil
}

func (m *mockIntent) Write(_ context.Context, v bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	m.writes++
	m.value = v
	return nil
}

type mockPerm struct {
	granted bool
}

func (m *mockPerm) Granted(context.Context) (bool, error) {
	return m.granted, nil
}

type mockSubscription struct {
	p *mockProvider
}

func (s *mockSubscription) Cancel() error {
	s.p.mu.Lock()
	s.p.cancels++
	s.p.onFix = nil
	s.p.mu.Unlock()
	return nil
}

type mockProvider struct {
	mu         sync.Mutex
	subscribes int
	cancels    int
	req        provider.Request
	onFix      func(fix.Fix)
	failErr    error
}

func (p *mockProvider) Name() string {
	return "mock"
}

func (p *mockProvider) Subscribe(_ context.Context, req provider.Request, onFix func(fix.Fix)) (provider.Subscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failErr != nil {
		return nil, p.failErr
	}
	p.subscribes++
	p.req = req
	p.onFix = onFix
	return &mockSubscription{p: p}, nil
}

func (p *mockProvider) emit(f fix.Fix) {
	p.mu.Lock()
	cb := p.onFix
	p.mu.Unlock()
	if cb != nil {
		cb(f)
	}
}

type mockIndicator struct {
	published int
	withdrawn int
	active    bool
}

func (m *mockIndicator) Publish(context.Context, notify.Notification) error {
	m.published++
	m.active = true
	return nil
}

func (m *mockIndicator) Withdraw(context.Context, int) error {
	m.withdrawn++
	m.active = false
	return nil
}

type mockSub struct {
	got    []fix.Fix
	closed bool
}

func (m *mockSub) Push(f fix.Fix) bool {
	if m.closed {
		return true
	}
	m.got = append(m.got, f)
	return false
}

type fixture struct {
	intent *mockIntent
	perm   *mockPerm
	prov   *mockProvider
	ind    *mockIndicator
	c      *Controller
}

func newFixture() *fixture {
	f := &fixture{intent: &mockIntent{}, perm: &mockPerm{granted: true}, prov: &mockProvider{}, ind: &mockIndicator{}}
	f.c = NewController(f.intent, f.perm, f.prov, f.ind, nil, nil)
	return f
}

func TestStartIdempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	if err := f.c.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := f.c.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if f.prov.subscribes != 1 {
		t.Errorf("subscribes = %d, want 1", f.prov.subscribes)
	}
	if f.intent.writes != 1 {
		t.Errorf("writes = %d, want 1", f.intent.writes)
	}
	if f.c.State() != Running {
		t.Errorf("state = %s, want running", f.c.State())
	}
}

func TestStartUsesDefaultRequest(t *testing.T) {
	f := newFixture()
	if err := f.c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if f.prov.req != provider.DefaultRequest() {
		t.Errorf("request = %+v", f.prov.req)
	}
	if !f.ind.active {
		t.Error("notification should be published while running")
	}
}

func TestStopWhenStoppedIsNoop(t *testing.T) {
	f := newFixture()
	if err := f.c.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
	if f.intent.writes != 0 || f.prov.cancels != 0 {
		t.Errorf("writes = %d cancels = %d, want 0 0", f.intent.writes, f.prov.cancels)
	}
}

func TestStopReleasesOnce(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_ = f.c.Start(ctx)
	if err := f.c.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	if err := f.c.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	if f.prov.cancels != 1 {
		t.Errorf("cancels = %d, want 1", f.prov.cancels)
	}
	if f.intent.writes != 2 {
		t.Errorf("writes = %d, want 2", f.intent.writes)
	}
	if f.ind.active {
		t.Error("notification should be withdrawn")
	}
}

func TestIsActiveRoundTrip(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_ = f.c.Start(ctx)
	if v, _ := f.c.IsActive(ctx); !v {
		t.Error("IsActive after Start should be true")
	}
	_ = f.c.Stop(ctx)
	if v, _ := f.c.IsActive(ctx); v {
		t.Error("IsActive after Stop should be false")
	}
}

func TestPermissionDenied(t *testing.T) {
	f := newFixture()
	f.perm.granted = false
	ctx := context.Background()
	err := f.c.Start(ctx)
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
	if !f.intent.value {
		t.Error("intent should remain true after denial")
	}
	if f.c.State() != Stopped {
		t.Errorf("state = %s, want stopped", f.c.State())
	}
	if f.prov.subscribes != 0 || f.ind.published != 0 {
		t.Error("no subscription or notification expected on denial")
	}

	f.perm.granted = true
	if err := f.c.Start(ctx); err != nil {
		t.Fatalf("retry after grant: %v", err)
	}
	if f.c.State() != Running {
		t.Errorf("state = %s, want running", f.c.State())
	}
}

func TestOnPermissionGrantedResumes(t *testing.T) {
	f := newFixture()
	f.perm.granted = false
	ctx := context.Background()
	_ = f.c.Start(ctx)
	f.perm.granted = true
	if err := f.c.OnPermissionGranted(ctx); err != nil {
		t.Fatal(err)
	}
	if f.c.State() != Running {
		t.Errorf("state = %s, want running", f.c.State())
	}
}

func TestOnPermissionGrantedWithoutIntent(t *testing.T) {
	f := newFixture()
	if err := f.c.OnPermissionGranted(context.Background()); err != nil {
		t.Fatal(err)
	}
	if f.prov.subscribes != 0 {
		t.Error("grant without intent must not start tracking")
	}
}

func TestStopClearsPendingIntent(t *testing.T) {
	f := newFixture()
	f.perm.granted = false
	ctx := context.Background()
	_ = f.c.Start(ctx)
	if err := f.c.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	if f.intent.value {
		t.Error("stop should clear the pending intent")
	}
	if f.prov.cancels != 0 {
		t.Error("nothing to release after a denied start")
	}
}

func TestProviderUnavailable(t *testing.T) {
	f := newFixture()
	f.prov.failErr = provider.ErrUnavailable
	err := f.c.Start(context.Background())
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected provider unavailable, got %v", err)
	}
	if !errors.Is(err, provider.ErrUnavailable) {
		t.Error("cause should be preserved")
	}
	if f.c.State() != Stopped || !f.intent.value {
		t.Errorf("state = %s intent = %v, want stopped true", f.c.State(), f.intent.value)
	}
	if f.ind.active {
		t.Error("notification should be withdrawn after provider failure")
	}
}

func TestPersistenceFailureAborts(t *testing.T) {
	f := newFixture()
	f.intent.failErr = errors.New("disk full")
	ctx := context.Background()
	err := f.c.Start(ctx)
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected persistence failure, got %v", err)
	}
	if f.c.State() != Stopped || f.prov.subscribes != 0 || f.ind.published != 0 {
		t.Error("start must not proceed without a persisted intent")
	}

	f.intent.failErr = nil
	_ = f.c.Start(ctx)
	f.intent.failErr = errors.New("disk full")
	if err := f.c.Stop(ctx); !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected persistence failure on stop, got %v", err)
	}
	if f.c.State() != Running || f.prov.cancels != 0 {
		t.Error("stop must not proceed without a persisted intent")
	}
}

func TestFixForwardingOrder(t *testing.T) {
	f := newFixture()
	sub := &mockSub{}
	f.c.Attach(sub)
	_ = f.c.Start(context.Background())
	for i := 1; i <= 3; i++ {
		f.prov.emit(fix.Fix{Latitude: float64(i)})
	}
	if len(sub.got) != 3 {
		t.Fatalf("got %d fixes, want 3", len(sub.got))
	}
	for i, g := range sub.got {
		if g.Latitude != float64(i+1) {
			t.Errorf("fix %d latitude %v", i, g.Latitude)
		}
	}
}

func TestNoSubscriberDrop(t *testing.T) {
	f := newFixture()
	_ = f.c.Start(context.Background())
	f.prov.emit(fix.Fix{Latitude: 1})
	sub := &mockSub{}
	f.c.Attach(sub)
	if len(sub.got) != 0 {
		t.Fatal("dropped fix must not be replayed")
	}
	f.prov.emit(fix.Fix{Latitude: 2})
	if len(sub.got) != 1 || sub.got[0].Latitude != 2 {
		t.Errorf("got %+v", sub.got)
	}
}

func TestDetachAndClosedSubscriber(t *testing.T) {
	f := newFixture()
	_ = f.c.Start(context.Background())
	a := &mockSub{}
	b := &mockSub{}
	f.c.Attach(a)
	f.c.Detach(b)
	f.prov.emit(fix.Fix{Latitude: 1})
	if len(a.got) != 1 {
		t.Fatal("detaching another subscriber must not detach the current one")
	}
	a.closed = true
	f.prov.emit(fix.Fix{Latitude: 2})
	a.closed = false
	f.prov.emit(fix.Fix{Latitude: 3})
	if len(a.got) != 1 {
		t.Errorf("closed subscriber should be detached, got %d fixes", len(a.got))
	}
}

func TestStaleSessionFixDropped(t *testing.T) {
	f := newFixture()
	sub := &mockSub{}
	f.c.Attach(sub)
	ctx := context.Background()
	_ = f.c.Start(ctx)
	f.prov.mu.Lock()
	stale := f.prov.onFix
	f.prov.mu.Unlock()
	_ = f.c.Stop(ctx)
	stale(fix.Fix{Latitude: 9})
	if len(sub.got) != 0 {
		t.Error("fix from a cancelled session was forwarded")
	}
}

func TestShutdownKeepsIntent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_ = f.c.Start(ctx)
	f.c.Shutdown(ctx)
	if f.c.State() != Stopped || f.prov.cancels != 1 {
		t.Errorf("state = %s cancels = %d", f.c.State(), f.prov.cancels)
	}
	if !f.intent.value {
		t.Error("shutdown must keep the intent for the next boot")
	}
}

func TestConcurrentStarts(t *testing.T) {
	f := newFixture()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = f.c.Start(context.Background())
		}()
	}
	wg.Wait()
	if f.prov.subscribes != 1 {
		t.Errorf("subscribes = %d, want 1", f.prov.subscribes)
	}
}
