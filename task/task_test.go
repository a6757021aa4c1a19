package task

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cryguy/hostbridge/host"
	"github.com/cryguy/hostbridge/host/hosttest"
	"github.com/cryguy/hostbridge/marshal"
	"github.com/cryguy/hostbridge/safeerr"
)

func newLoop(t *testing.T) (*hosttest.Host, *hosttest.Loop) {
	t.Helper()
	h := hosttest.New()
	h.Signal = func(h host.Host, exc host.Value) error { return safeerr.Signal(h, exc) }
	l := hosttest.NewLoop(h)
	l.Settle = func(h host.Host, v host.Value, err error) (host.Value, bool) {
		out, thrown := safeerr.Finish(h, v, err)
		return out, thrown == nil
	}
	return h, l
}

// invocation records one callback call.
type invocation struct {
	err   string
	value host.Value
}

func recorder() (*hosttest.Value, func() []invocation) {
	var mu sync.Mutex
	var calls []invocation
	cb := hosttest.Fn(func(args ...host.Value) (host.Value, error) {
		mu.Lock()
		defer mu.Unlock()
		inv := invocation{}
		if len(args) > 0 && !args[0].Kind().IsNullish() {
			inv.err = hosttest.Message(args[0])
		} else if len(args) > 1 {
			inv.value = args[1]
		}
		calls = append(calls, inv)
		return nil, nil
	})
	return cb, func() []invocation {
		mu.Lock()
		defer mu.Unlock()
		return append([]invocation(nil), calls...)
	}
}

func call(h *hosttest.Host, l *hosttest.Loop) *host.Call {
	return &host.Call{Host: h, Loop: l, Name: "op"}
}

func TestRun_ErrorReachesCallback(t *testing.T) {
	h, l := newLoop(t)
	cb, calls := recorder()

	h.Enter()
	_, err := Run(call(h, l), cb, func() (uint64, error) {
		return 0, safeerr.New("boom")
	}, marshal.U64Into)
	h.Leave()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	l.Drain(1)
	got := calls()
	if len(got) != 1 {
		t.Fatalf("callback invoked %d times, want 1", len(got))
	}
	if got[0].err != "boom" {
		t.Errorf("callback error = %q, want boom", got[0].err)
	}
	if h.Persisted(cb) != 0 {
		t.Errorf("callback still persisted after delivery")
	}
}

func TestRun_ValueReachesCallback(t *testing.T) {
	h, l := newLoop(t)
	cb, calls := recorder()

	h.Enter()
	_, err := Run(call(h, l), cb, func() (uint64, error) { return 42, nil }, marshal.U64Into)
	h.Leave()
	if err != nil {
		t.Fatal(err)
	}
	l.Drain(1)
	got := calls()
	if len(got) != 1 || got[0].err != "" || hosttest.NumOf(got[0].value) != 42 {
		t.Fatalf("calls = %+v", got)
	}
}

func TestRun_NTasksNCallbacks(t *testing.T) {
	h, l := newLoop(t)
	const n = 200

	var mu sync.Mutex
	seen := map[string]int{}
	cb := hosttest.Fn(func(args ...host.Value) (host.Value, error) {
		mu.Lock()
		defer mu.Unlock()
		if !args[0].Kind().IsNullish() {
			seen[hosttest.Message(args[0])]++
		} else {
			seen[hosttest.StrOf(args[1])]++
		}
		return nil, nil
	})

	h.Enter()
	for i := 0; i < n; i++ {
		i := i
		_, err := Run(call(h, l), cb, func() (string, error) {
			time.Sleep(time.Duration(i%7) * time.Millisecond)
			if i%3 == 0 {
				return "", safeerr.Errorf("err-%d", i)
			}
			return fmt.Sprintf("ok-%d", i), nil
		}, marshal.StringInto)
		if err != nil {
			t.Fatalf("Run %d: %v", i, err)
		}
	}
	h.Leave()

	if got := l.Drain(n); got != n {
		t.Fatalf("delivered %d, want %d", got, n)
	}
	if l.Pending() != 0 {
		t.Errorf("pending = %d after drain", l.Pending())
	}
	if len(seen) != n {
		t.Fatalf("distinct results = %d, want %d", len(seen), n)
	}
	for k, c := range seen {
		if c != 1 {
			t.Errorf("%s delivered %d times", k, c)
		}
	}
}

func TestRun_ConversionFailureReachesCallback(t *testing.T) {
	h, l := newLoop(t)
	cb, calls := recorder()

	h.Enter()
	_, err := Run(call(h, l), cb, func() (uint64, error) { return 1 << 60, nil }, marshal.U64Into)
	h.Leave()
	if err != nil {
		t.Fatal(err)
	}
	l.Drain(1)
	got := calls()
	if len(got) != 1 || !strings.Contains(got[0].err, "exceeded limits") {
		t.Fatalf("calls = %+v", got)
	}
}

func TestRun_StateMachine(t *testing.T) {
	h, l := newLoop(t)
	cb, _ := recorder()
	release := make(chan struct{})
	started := make(chan struct{})

	h.Enter()
	tk, err := Run(call(h, l), cb, func() (uint64, error) {
		close(started)
		<-release
		return 1, nil
	}, marshal.U64Into)
	h.Leave()
	if err != nil {
		t.Fatal(err)
	}

	<-started
	if s := tk.State(); s != Running {
		t.Errorf("state while body runs = %v, want running", s)
	}
	close(release)
	l.Drain(1)
	if s := tk.State(); s != CompletedOK {
		t.Errorf("state after delivery = %v, want completed(ok)", s)
	}
}

func TestRun_PanickingBodyStillDelivers(t *testing.T) {
	h, l := newLoop(t)
	cb, calls := recorder()

	h.Enter()
	tk, err := Run(call(h, l), cb, func() (uint64, error) { panic("kaput") }, marshal.U64Into)
	h.Leave()
	if err != nil {
		t.Fatal(err)
	}
	l.Drain(1)
	got := calls()
	if len(got) != 1 || !strings.Contains(got[0].err, "kaput") {
		t.Fatalf("calls = %+v", got)
	}
	if tk.State() != CompletedErr {
		t.Errorf("state = %v, want completed(err)", tk.State())
	}
}

func TestRun_RejectsNonFunctionCallback(t *testing.T) {
	h, l := newLoop(t)
	h.Enter()
	defer h.Leave()
	_, err := Run(call(h, l), hosttest.Num(1), func() (uint64, error) { return 0, nil }, marshal.U64Into)
	if !safeerr.Recoverable(err) {
		t.Fatalf("err = %v, want recoverable mismatch", err)
	}
	if l.Pending() != 0 {
		t.Errorf("nothing should be scheduled, pending = %d", l.Pending())
	}
}

func TestRunFunc(t *testing.T) {
	h, l := newLoop(t)
	cb, calls := recorder()

	h.Enter()
	_, err := RunFunc(call(h, l), cb, func() (Builder, error) {
		return func(h host.Host) (host.Value, error) { return h.String("built") }, nil
	})
	h.Leave()
	if err != nil {
		t.Fatal(err)
	}
	l.Drain(1)
	got := calls()
	if len(got) != 1 || hosttest.StrOf(got[0].value) != "built" {
		t.Fatalf("calls = %+v", got)
	}
}

func TestOnce_SecondTakePanics(t *testing.T) {
	o := NewOnce(func() int { return 1 })
	if o.Take()() != 1 {
		t.Fatal("first take returned the wrong closure")
	}
	if !o.Taken() {
		t.Error("Taken() = false after Take")
	}
	defer func() {
		if recover() == nil {
			t.Error("second Take did not panic")
		}
	}()
	o.Take()
}

func TestOnce_ConcurrentTakeExactlyOnce(t *testing.T) {
	o := NewOnce(42)
	var wins, panics atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if recover() != nil {
					panics.Add(1)
				}
			}()
			if o.Take() == 42 {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	if wins.Load() != 1 || panics.Load() != 15 {
		t.Errorf("wins = %d, panics = %d", wins.Load(), panics.Load())
	}
}

func TestPool_BoundsConcurrency(t *testing.T) {
	p := NewPool(3)
	var cur, peak atomic.Int32
	for i := 0; i < 30; i++ {
		p.Go(func() {
			n := cur.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			cur.Add(-1)
		})
	}
	p.Wait()
	if peak.Load() > 3 {
		t.Errorf("peak concurrency = %d, want <= 3", peak.Load())
	}
	if peak.Load() == 0 {
		t.Error("no work ran")
	}
}

func TestPool_GoDoesNotStartAGoroutinePerTask(t *testing.T) {
	p := NewPool(4)
	release := make(chan struct{})
	var started atomic.Int32
	for i := 0; i < 500; i++ {
		p.Go(func() {
			started.Add(1)
			<-release
		})
	}
	if w := p.Workers(); w > 4 {
		t.Fatalf("workers = %d after queueing 500 tasks, want <= 4", w)
	}
	close(release)
	p.Wait()
	if started.Load() != 500 {
		t.Errorf("ran %d, want 500", started.Load())
	}
	deadline := time.Now().Add(time.Second)
	for p.Workers() != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if w := p.Workers(); w != 0 {
		t.Errorf("workers = %d after the queue drained, want 0", w)
	}
}

func TestSpawn_RunsEverything(t *testing.T) {
	var s Spawn
	var n atomic.Int32
	for i := 0; i < 50; i++ {
		s.Go(func() { n.Add(1) })
	}
	s.Wait()
	if n.Load() != 50 {
		t.Errorf("ran %d, want 50", n.Load())
	}
}

func TestState_String(t *testing.T) {
	for s, want := range map[State]string{
		Scheduled:    "scheduled",
		Running:      "running",
		CompletedOK:  "completed(ok)",
		CompletedErr: "completed(err)",
		State(9):     "state(9)",
	} {
		if got := s.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int32(s), got, want)
		}
	}
}
