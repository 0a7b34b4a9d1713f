// Package stages provides ready-made pipeline stages: a Sleeper that
// simulates work, a Backpressure monitor that drives elastic scaling, a
// Throttle that caps a node's envelope rate, an Indexer that numbers
// repeated ids and an Adder for numeric payloads.
package stages
