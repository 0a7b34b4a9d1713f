package bucket

import (
	"testing"
	"time"

	"github.com/vnykmshr/pipexec/internal/testutil"
	"github.com/vnykmshr/pipexec/pkg/common/errors"
)

type mockClock struct {
	now time.Time
}

func (m *mockClock) Now() time.Time {
	return m.now
}

func (m *mockClock) Advance(d time.Duration) {
	m.now = m.now.Add(d)
}

func newMockClock() *mockClock {
	return &mockClock{now: time.Unix(1700000000, 0)}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		rate    Limit
		burst   int
		wantErr bool
	}{
		{"valid parameters", 10, 5, false},
		{"zero rate", 0, 5, false},
		{"infinite rate", Inf, 5, false},
		{"negative rate", -1, 5, true},
		{"zero burst", 10, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter, err := New(Config{Rate: tt.rate, Burst: tt.burst})
			if tt.wantErr {
				if !errors.IsValidationError(err) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			testutil.AssertNoError(t, err)
			testutil.AssertEqual(t, limiter.Limit(), tt.rate)
			testutil.AssertEqual(t, limiter.Burst(), tt.burst)
		})
	}
}

func TestReserveDebt(t *testing.T) {
	clock := newMockClock()
	limiter, err := New(Config{Rate: 10, Burst: 2, Clock: clock})
	testutil.AssertNoError(t, err)

	want := []time.Duration{0, 0, 100 * time.Millisecond, 200 * time.Millisecond}
	for i, w := range want {
		r := limiter.Reserve()
		if !r.OK() {
			t.Fatalf("reservation %d not OK", i)
		}
		testutil.AssertEqual(t, r.Delay(), w)
	}
}

func TestReserveRefill(t *testing.T) {
	clock := newMockClock()
	limiter, err := New(Config{Rate: 4, Burst: 1, Clock: clock})
	testutil.AssertNoError(t, err)

	testutil.AssertEqual(t, limiter.Reserve().Delay(), time.Duration(0))

	r := limiter.Reserve()
	testutil.AssertEqual(t, r.Delay(), 250*time.Millisecond)

	clock.Advance(100 * time.Millisecond)
	testutil.AssertEqual(t, r.Delay(), 150*time.Millisecond)

	clock.Advance(time.Second)
	testutil.AssertEqual(t, limiter.Reserve().Delay(), time.Duration(0))
}

func TestReserveZeroRate(t *testing.T) {
	limiter, err := New(Config{Rate: 0, Burst: 1, Clock: newMockClock()})
	testutil.AssertNoError(t, err)

	if !limiter.Reserve().OK() {
		t.Fatal("initial token should be granted")
	}
	r := limiter.Reserve()
	if r.OK() {
		t.Fatal("zero rate should not grant beyond the burst")
	}
	testutil.AssertEqual(t, r.Delay(), time.Duration(0))
}

func TestReserveInf(t *testing.T) {
	limiter, err := New(Config{Rate: Inf, Burst: 1, Clock: newMockClock()})
	testutil.AssertNoError(t, err)

	for i := 0; i < 100; i++ {
		testutil.AssertEqual(t, limiter.ReserveN(5).Delay(), time.Duration(0))
	}
}
