// Package validation provides common validation utilities for configuration
// parameters across the pipexec library.
//
// Constructors for queues, topology maps and pipeline nodes use these helpers
// so that construction errors carry the same ValidationError shape.
package validation
