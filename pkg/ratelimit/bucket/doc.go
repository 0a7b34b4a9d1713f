// Package bucket provides a token bucket limiter that hands out
// reservations. A reservation taken beyond the burst puts the bucket in
// debt, and its Delay tells the holder how long to wait.
package bucket
