package queue

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vnykmshr/pipexec/internal/testutil"
	"github.com/vnykmshr/pipexec/pkg/common/errors"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		wantErr  bool
	}{
		{"capacity one", 1, false},
		{"capacity ten", 10, false},
		{"zero capacity", 0, true},
		{"negative capacity", -3, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := New[int](tt.capacity)
			if tt.wantErr {
				testutil.AssertError(t, err)
				if !errors.IsValidationError(err) {
					t.Errorf("expected ValidationError, got %T", err)
				}
				return
			}
			testutil.AssertNoError(t, err)
			testutil.AssertEqual(t, q.Cap(), tt.capacity)
			testutil.AssertEqual(t, q.Len(), 0)
		})
	}
}

func TestFIFOOrder(t *testing.T) {
	q := MustNew[string](3)

	for _, v := range []string{"A", "B", "C"} {
		testutil.AssertNoError(t, q.Push(v))
	}
	testutil.AssertEqual(t, q.Len(), 3)

	for _, want := range []string{"A", "B", "C"} {
		got, err := q.Pop()
		testutil.AssertNoError(t, err)
		testutil.AssertEqual(t, got, want)
	}
	testutil.AssertEqual(t, q.Len(), 0)
}

func TestWrapAround(t *testing.T) {
	q := MustNew[int](2)

	for i := 0; i < 10; i++ {
		testutil.AssertNoError(t, q.Push(i))
		got, err := q.Pop()
		testutil.AssertNoError(t, err)
		testutil.AssertEqual(t, got, i)
	}
}

func TestTryPop(t *testing.T) {
	q := MustNew[int](2)

	_, ok, err := q.TryPop()
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, ok, false)

	testutil.AssertNoError(t, q.Push(7))
	v, ok, err := q.TryPop()
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, ok, true)
	testutil.AssertEqual(t, v, 7)
}

func TestPushBlocksWhenFull(t *testing.T) {
	q := MustNew[int](1)
	testutil.AssertNoError(t, q.Push(1))

	pushed := make(chan struct{})
	go func() {
		_ = q.Push(2)
		close(pushed)
	}()

	select {
	case <-pushed:
		t.Fatal("Push returned while the queue was full")
	case <-time.After(50 * time.Millisecond):
	}

	v, err := q.Pop()
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, v, 1)

	select {
	case <-pushed:
	case <-time.After(testutil.TestTimeout):
		t.Fatal("Push did not resume after Pop")
	}

	v, err = q.Pop()
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, v, 2)
}

func TestCapacityInvariant(t *testing.T) {
	const capacity = 4
	const producers = 8
	const perProducer = 200

	q := MustNew[int](capacity)
	var violations int32
	stop := make(chan struct{})
	var watcher sync.WaitGroup

	watcher.Add(1)
	go func() {
		defer watcher.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			if n := q.Len(); n < 0 || n > capacity {
				atomic.AddInt32(&violations, 1)
			}
		}
	}()

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				_ = q.Push(p*perProducer + i)
			}
		}(p)
	}

	seen := make(map[int]bool)
	var mu sync.Mutex
	var consumers sync.WaitGroup
	var received int32
	for c := 0; c < 3; c++ {
		consumers.Add(1)
		go func() {
			defer consumers.Done()
			for atomic.LoadInt32(&received) < producers*perProducer {
				v, ok, err := q.TryPop()
				if err != nil {
					return
				}
				if !ok {
					continue
				}
				atomic.AddInt32(&received, 1)
				mu.Lock()
				seen[v] = true
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	consumers.Wait()
	close(stop)
	watcher.Wait()

	testutil.AssertEqual(t, atomic.LoadInt32(&violations), int32(0))
	testutil.AssertEqual(t, len(seen), producers*perProducer)
	testutil.AssertEqual(t, q.Len(), 0)
}

func TestCloseDrainsThenFails(t *testing.T) {
	q := MustNew[int](3)
	testutil.AssertNoError(t, q.Push(1))
	testutil.AssertNoError(t, q.Push(2))

	q.Close()
	q.Close()

	if err := q.Push(3); err != errors.ErrClosed {
		t.Fatalf("Push after Close = %v, want ErrClosed", err)
	}

	for _, want := range []int{1, 2} {
		v, err := q.Pop()
		testutil.AssertNoError(t, err)
		testutil.AssertEqual(t, v, want)
	}

	if _, err := q.Pop(); err != errors.ErrClosed {
		t.Fatalf("Pop on drained closed queue = %v, want ErrClosed", err)
	}
	if _, _, err := q.TryPop(); err != errors.ErrClosed {
		t.Fatalf("TryPop on drained closed queue = %v, want ErrClosed", err)
	}
}

func TestCloseWakesBlockedCallers(t *testing.T) {
	empty := MustNew[int](1)
	full := MustNew[int](1)
	testutil.AssertNoError(t, full.Push(0))

	errs := make(chan error, 2)
	go func() {
		_, err := empty.Pop()
		errs <- err
	}()
	go func() {
		errs <- full.Push(1)
	}()

	time.Sleep(20 * time.Millisecond)
	empty.Close()
	full.Close()

	for i := 0; i < 2; i++ {
		select {
		case err := <-errs:
			if err != errors.ErrClosed {
				t.Errorf("blocked call returned %v, want ErrClosed", err)
			}
		case <-time.After(testutil.TestTimeout):
			t.Fatal("Close did not wake blocked caller")
		}
	}
}

func TestWaitFinishDoesNotConsume(t *testing.T) {
	q := MustNew[int](2)
	done := make(chan error, 1)

	go func() {
		done <- q.WaitFinish()
	}()

	time.Sleep(20 * time.Millisecond)
	testutil.AssertNoError(t, q.Push(42))

	select {
	case err := <-done:
		testutil.AssertNoError(t, err)
	case <-time.After(testutil.TestTimeout):
		t.Fatal("WaitFinish did not return after Push")
	}

	testutil.AssertEqual(t, q.Len(), 1)
	v, err := q.Pop()
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, v, 42)
}
