package bucket

import (
	"math"
	"time"
)

// Reserve reserves one token.
func (tb *tokenBucket) Reserve() *Reservation {
	return tb.ReserveN(1)
}

// ReserveN reserves n tokens. Tokens may go negative: the debt is the
// wait imposed on the holder of the reservation.
func (tb *tokenBucket) ReserveN(n int) *Reservation {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.clock.Now()
	granted := &Reservation{ok: true, timeToAct: now, clock: tb.clock}

	if n <= 0 || tb.limit == Inf {
		return granted
	}

	tb.updateTokens(now)

	if tb.tokens >= float64(n) {
		tb.tokens -= float64(n)
		return granted
	}

	if tb.limit == 0 {
		// Zero rate never refills.
		return &Reservation{clock: tb.clock}
	}

	needed := float64(n) - tb.tokens
	tb.tokens -= float64(n)
	granted.timeToAct = now.Add(time.Duration(float64(time.Second) * needed / float64(tb.limit)))
	return granted
}

// Limit returns the current rate limit.
func (tb *tokenBucket) Limit() Limit {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.limit
}

// Burst returns the bucket capacity.
func (tb *tokenBucket) Burst() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.burst
}

// updateTokens adds the tokens earned since the last update.
func (tb *tokenBucket) updateTokens(now time.Time) {
	if tb.limit == 0 {
		tb.lastUpdate = now
		return
	}

	elapsed := now.Sub(tb.lastUpdate)
	if elapsed <= 0 {
		return
	}

	tb.tokens = math.Min(tb.tokens+elapsed.Seconds()*float64(tb.limit), float64(tb.burst))
	tb.lastUpdate = now
}
