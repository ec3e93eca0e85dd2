package pipeline

import (
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRegistry_TryAcquireRelease(t *testing.T) {
	r := NewRegistry()
	if !r.TryAcquire("a") {
		t.Fatal("expected first acquire to succeed")
	}
	if r.TryAcquire("a") {
		t.Fatal("expected second acquire to fail")
	}
	if !r.Has("a") {
		t.Error("expected a in flight")
	}
	r.Release("a")
	r.Release("a")
	if r.Has("a") {
		t.Error("expected a released")
	}
	if !r.TryAcquire("a") {
		t.Error("expected reacquire after release")
	}
}

func TestRegistry_ConcurrentAcquire(t *testing.T) {
	r := NewRegistry()
	var won atomic.Int32
	var wg sync.WaitGroup
	for range 64 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.TryAcquire("job") {
				won.Add(1)
			}
		}()
	}
	wg.Wait()
	if won.Load() != 1 {
		t.Errorf("expected exactly one winner, got %d", won.Load())
	}
}

func TestRegistry_ListInAcquisitionOrder(t *testing.T) {
	r := NewRegistry()
	for _, id := range []string{"c", "a", "b"} {
		r.TryAcquire(id)
		time.Sleep(2 * time.Millisecond)
	}
	if got := r.List(); !reflect.DeepEqual(got, []string{"c", "a", "b"}) {
		t.Errorf("unexpected order %v", got)
	}
}

func TestRegistry_HoldBlocksAcquire(t *testing.T) {
	r := NewRegistry()
	r.TryAcquire("a")

	entered := make(chan struct{})
	release := make(chan struct{})
	go r.Hold(func(busy func(string) bool, active int) {
		if !busy("a") || busy("b") || active != 1 {
			t.Errorf("unexpected held state: a=%v b=%v active=%d", busy("a"), busy("b"), active)
		}
		close(entered)
		<-release
	})
	<-entered

	acquired := make(chan bool, 1)
	go func() { acquired <- r.TryAcquire("b") }()
	select {
	case <-acquired:
		t.Fatal("TryAcquire returned while the registry was held")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case ok := <-acquired:
		if !ok {
			t.Error("expected b to be acquired after the hold")
		}
	case <-time.After(time.Second):
		t.Fatal("TryAcquire did not resume after the hold")
	}
}
