package semaphore

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vnykmshr/pipexec/internal/testutil"
	"github.com/vnykmshr/pipexec/pkg/common/errors"
)

func TestNewSafe(t *testing.T) {
	tests := []struct {
		name    string
		initial int
		wantErr bool
	}{
		{"zero", 0, false},
		{"positive", 5, false},
		{"negative", -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSafe(tt.initial)
			if tt.wantErr {
				testutil.AssertError(t, err)
				if !errors.IsValidationError(err) {
					t.Errorf("expected ValidationError, got %T", err)
				}
				if s != nil {
					t.Error("expected nil semaphore on error")
				}
				return
			}
			testutil.AssertNoError(t, err)
			testutil.AssertEqual(t, s.Count(), tt.initial)
		})
	}
}

func TestWaitSignal(t *testing.T) {
	s := New(2)

	testutil.AssertNoError(t, s.Wait())
	testutil.AssertNoError(t, s.Wait())
	testutil.AssertEqual(t, s.Count(), 0)
	testutil.AssertEqual(t, s.TryWait(), false)

	s.Signal()
	testutil.AssertEqual(t, s.Count(), 1)
	testutil.AssertEqual(t, s.TryWait(), true)
	testutil.AssertEqual(t, s.Count(), 0)
}

func TestWaitBlocksUntilSignal(t *testing.T) {
	s := New(0)
	acquired := make(chan struct{})

	go func() {
		if err := s.Wait(); err == nil {
			close(acquired)
		}
	}()

	select {
	case <-acquired:
		t.Fatal("Wait returned before Signal")
	case <-time.After(50 * time.Millisecond):
	}

	s.Signal()

	select {
	case <-acquired:
	case <-time.After(testutil.TestTimeout):
		t.Fatal("Wait did not return after Signal")
	}
}

func TestCloseWakesWaiters(t *testing.T) {
	s := New(0)
	const waiters = 4

	var wg sync.WaitGroup
	var closedCount int32
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Wait(); err == errors.ErrClosed {
				atomic.AddInt32(&closedCount, 1)
			}
		}()
	}

	time.Sleep(20 * time.Millisecond)
	s.Close()
	wg.Wait()

	testutil.AssertEqual(t, atomic.LoadInt32(&closedCount), int32(waiters))
	testutil.AssertEqual(t, s.IsClosed(), true)
}

func TestClosedSemaphoreDrainsPermits(t *testing.T) {
	s := New(1)
	s.Close()

	testutil.AssertNoError(t, s.Wait())
	if err := s.Wait(); err != errors.ErrClosed {
		t.Fatalf("Wait on empty closed semaphore = %v, want ErrClosed", err)
	}
}

func TestConcurrentWaitSignal(t *testing.T) {
	const permits = 3
	const workers = 20

	s := New(permits)
	var inside, peak int32
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Wait(); err != nil {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			s.Signal()
		}()
	}

	wg.Wait()

	if got := atomic.LoadInt32(&peak); got > permits {
		t.Errorf("peak concurrency = %d, want <= %d", got, permits)
	}
	testutil.AssertEqual(t, s.Count(), permits)
}
