package batcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"gqlherd/internal/graphql"
	"gqlherd/internal/registry"
)

// fakeRunner records every execution and answers from an optional script
type fakeRunner struct {
	mu    sync.Mutex
	calls []runnerCall
	// respond, when set, decides the outcome per request
	respond func(req *graphql.Request) (*graphql.Response, int, error)
}

type runnerCall struct {
	query string
	fresh bool
	at    time.Time
}

func (f *fakeRunner) Execute(ctx context.Context, req *graphql.Request, fresh bool) (*graphql.Response, int, error) {
	f.mu.Lock()
	f.calls = append(f.calls, runnerCall{query: req.Query, fresh: fresh, at: time.Now()})
	f.mu.Unlock()

	if f.respond != nil {
		return f.respond(req)
	}
	return &graphql.Response{Data: json.RawMessage(`{"ok":true}`)}, 1, nil
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestBatcher(window time.Duration, maxSize int, runner Runner) (*Batcher, *registry.Registry) {
	reg := registry.New(zerolog.Nop())
	b := New(Config{Window: window, MaxSize: maxSize}, runner, reg, nil, zerolog.Nop())
	return b, reg
}

func collect(t *testing.T, handles []<-chan Outcome, timeout time.Duration) []Outcome {
	t.Helper()
	outcomes := make([]Outcome, len(handles))
	for i, h := range handles {
		select {
		case out := <-h:
			outcomes[i] = out
		case <-time.After(timeout):
			t.Fatalf("handle %d did not settle within %v", i, timeout)
		}
	}
	return outcomes
}

func TestSubmit_WindowFlush(t *testing.T) {
	runner := &fakeRunner{}
	b, reg := newTestBatcher(50*time.Millisecond, 50, runner)
	defer b.Close(context.Background())

	handles := make([]<-chan Outcome, 5)
	for i := range handles {
		handles[i] = b.Submit(fmt.Sprintf(`query Q%d { posts { id } }`, i), nil, false)
	}

	// Nothing dispatches before the window closes
	time.Sleep(20 * time.Millisecond)
	if n := runner.callCount(); n != 0 {
		t.Fatalf("runner called %d times before window elapsed", n)
	}

	outcomes := collect(t, handles, time.Second)
	for i, out := range outcomes {
		if out.Err != nil {
			t.Errorf("outcome %d rejected: %v", i, out.Err)
		}
	}

	if n := runner.callCount(); n != 5 {
		t.Errorf("runner calls = %d, want 5", n)
	}
	if reg.Len() != 0 {
		t.Errorf("registry len = %d after all settles, want 0", reg.Len())
	}
}

func TestSubmit_SizeForcedFlush(t *testing.T) {
	runner := &fakeRunner{}
	b, _ := newTestBatcher(500*time.Millisecond, 3, runner)
	defer b.Close(context.Background())

	handles := make([]<-chan Outcome, 3)
	start := time.Now()
	for i := range handles {
		handles[i] = b.Submit(fmt.Sprintf(`query Q%d { posts { id } }`, i), nil, false)
	}

	collect(t, handles, time.Second)

	// The size cap flushed immediately, long before the 500ms window
	if elapsed := time.Since(start); elapsed > 250*time.Millisecond {
		t.Errorf("size-capped batch took %v, should not wait for the window", elapsed)
	}
}

func TestSubmit_SizeFlushThenWindowRemainder(t *testing.T) {
	runner := &fakeRunner{}
	b, reg := newTestBatcher(80*time.Millisecond, 5, runner)
	defer b.Close(context.Background())

	start := time.Now()
	handles := make([]<-chan Outcome, 7)
	for i := range handles {
		handles[i] = b.Submit(fmt.Sprintf(`query Q%d { posts { id } }`, i), nil, false)
	}

	outcomes := collect(t, handles, time.Second)
	for i, out := range outcomes {
		if out.Err != nil {
			t.Errorf("outcome %d rejected: %v", i, out.Err)
		}
	}

	// First five members flushed on the size cap, the remaining two
	// waited out a fresh window.
	runner.mu.Lock()
	defer runner.mu.Unlock()
	if len(runner.calls) != 7 {
		t.Fatalf("runner calls = %d, want 7", len(runner.calls))
	}

	var early, late int
	for _, call := range runner.calls {
		if call.at.Sub(start) < 40*time.Millisecond {
			early++
		} else {
			late++
		}
	}
	if early != 5 || late != 2 {
		t.Errorf("dispatch split = %d early / %d late, want 5/2", early, late)
	}

	if reg.Len() != 0 {
		t.Errorf("registry len = %d, want 0", reg.Len())
	}
}

func TestSubmit_BypassSkipsWindow(t *testing.T) {
	runner := &fakeRunner{}
	b, _ := newTestBatcher(300*time.Millisecond, 50, runner)
	defer b.Close(context.Background())

	// An open batch exists...
	batched := b.Submit(`query Batched { posts { id } }`, nil, false)

	// ...and a fresh submission still never waits for it
	start := time.Now()
	fresh := b.Submit(`query Draft { post(id: 1, asPreview: true) { id } }`, nil, true)

	select {
	case out := <-fresh:
		if out.Err != nil {
			t.Fatalf("fresh outcome rejected: %v", out.Err)
		}
	case <-time.After(150 * time.Millisecond):
		t.Fatal("fresh request waited on the batch window")
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("fresh request took %v", elapsed)
	}

	runner.mu.Lock()
	if len(runner.calls) != 1 || !runner.calls[0].fresh {
		t.Errorf("first runner call should be the fresh one, got %+v", runner.calls)
	}
	runner.mu.Unlock()

	collect(t, []<-chan Outcome{batched}, time.Second)
}

func TestRun_PartialFailureIsolation(t *testing.T) {
	runner := &fakeRunner{
		respond: func(req *graphql.Request) (*graphql.Response, int, error) {
			if req.Query == `query Q1 { posts { id } }` {
				return nil, 1, errors.New("member failed")
			}
			return &graphql.Response{Data: json.RawMessage(`{"ok":true}`)}, 1, nil
		},
	}
	b, reg := newTestBatcher(10*time.Millisecond, 3, runner)
	defer b.Close(context.Background())

	handles := make([]<-chan Outcome, 3)
	for i := range handles {
		handles[i] = b.Submit(fmt.Sprintf(`query Q%d { posts { id } }`, i), nil, false)
	}

	outcomes := collect(t, handles, time.Second)

	if outcomes[0].Err != nil || outcomes[2].Err != nil {
		t.Errorf("sibling outcomes contaminated: %v, %v", outcomes[0].Err, outcomes[2].Err)
	}
	if outcomes[1].Err == nil {
		t.Error("failing member resolved successfully")
	}
	if reg.Len() != 0 {
		t.Errorf("registry len = %d, want 0", reg.Len())
	}
}

func TestRun_DispatchFailureFanOut(t *testing.T) {
	// No runner configured: the dispatch mechanism itself cannot work
	b, reg := newTestBatcher(10*time.Millisecond, 3, nil)
	defer b.Close(context.Background())

	handles := make([]<-chan Outcome, 3)
	for i := range handles {
		handles[i] = b.Submit(fmt.Sprintf(`query Q%d { posts { id } }`, i), nil, false)
	}

	outcomes := collect(t, handles, time.Second)
	for i, out := range outcomes {
		if !errors.Is(out.Err, ErrDispatch) {
			t.Errorf("outcome %d err = %v, want ErrDispatch", i, out.Err)
		}
	}
	if reg.Len() != 0 {
		t.Errorf("registry len = %d, want 0 (no member left unsettled)", reg.Len())
	}
}

func TestSubmit_EmptyWindowIsNoop(t *testing.T) {
	runner := &fakeRunner{}
	b, _ := newTestBatcher(20*time.Millisecond, 3, runner)
	defer b.Close(context.Background())

	// Fill and size-flush a batch, then let its (stale) timer fire over
	// the next, empty generation.
	handles := make([]<-chan Outcome, 3)
	for i := range handles {
		handles[i] = b.Submit(fmt.Sprintf(`query Q%d { posts { id } }`, i), nil, false)
	}
	collect(t, handles, time.Second)

	time.Sleep(60 * time.Millisecond)
	if n := runner.callCount(); n != 3 {
		t.Errorf("runner calls = %d after idle windows, want 3", n)
	}
}

func TestSubmit_AttemptCountPropagates(t *testing.T) {
	runner := &fakeRunner{
		respond: func(req *graphql.Request) (*graphql.Response, int, error) {
			return &graphql.Response{}, 3, nil
		},
	}
	b, _ := newTestBatcher(10*time.Millisecond, 50, runner)
	defer b.Close(context.Background())

	out := <-b.Submit(`query Q { posts { id } }`, nil, false)
	if out.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", out.Attempts)
	}
}

func TestClose_FlushesAndRefuses(t *testing.T) {
	runner := &fakeRunner{}
	b, reg := newTestBatcher(time.Hour, 50, runner)

	h := b.Submit(`query Pending { posts { id } }`, nil, false)

	if err := b.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// The pending member settled instead of leaking
	select {
	case out := <-h:
		if out.Err != nil {
			t.Errorf("pending outcome rejected at close: %v", out.Err)
		}
	default:
		t.Fatal("pending request left unsettled by Close")
	}

	// Submissions after close are rejected, not buffered
	out := <-b.Submit(`query Late { posts { id } }`, nil, false)
	if !errors.Is(out.Err, ErrClosed) {
		t.Errorf("post-close outcome err = %v, want ErrClosed", out.Err)
	}

	if reg.Len() != 0 {
		t.Errorf("registry len = %d, want 0", reg.Len())
	}
}

func TestSubmit_ManyConcurrentCallers(t *testing.T) {
	runner := &fakeRunner{}
	b, reg := newTestBatcher(10*time.Millisecond, 16, runner)
	defer b.Close(context.Background())

	const n = 200
	var wg sync.WaitGroup
	errs := make(chan error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out := <-b.Submit(fmt.Sprintf(`query Q%d { posts { id } }`, i), nil, i%7 == 0)
			errs <- out.Err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("caller rejected: %v", err)
		}
	}
	if got := runner.callCount(); got != n {
		t.Errorf("runner calls = %d, want %d", got, n)
	}
	if reg.Len() != 0 {
		t.Errorf("registry len = %d, want 0", reg.Len())
	}
}
