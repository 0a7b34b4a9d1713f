package testutil

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// ObservedLogger returns a debug-level logger whose entries are captured in
// the returned ObservedLogs, so tests can assert on what the engine logged.
func ObservedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

// LogsWithField returns the entries that carry a field with the given key.
func LogsWithField(logs *observer.ObservedLogs, key string) []observer.LoggedEntry {
	var out []observer.LoggedEntry
	for _, entry := range logs.All() {
		if _, ok := entry.ContextMap()[key]; ok {
			out = append(out, entry)
		}
	}
	return out
}
