// Package testutil provides shared test utilities for synde.
//
// This package consolidates common test helpers, fixtures, and assertions
// used across the synde codebase to reduce duplication and keep test
// patterns consistent.
//
// # Mock Backend
//
// The cleanup.go file starts in-process mock backends:
//
//   - StartMockBackend(t, opts...) - boots internal/server on a free port
//     with fast scripted workflows and stops it when the test ends
//   - WithStepDelay, WithAuthToken, WithHeartbeatInterval,
//     WithMaxStreamDuration - backend options
//   - SilentLogger() - a logger discarding all output
//
// # Fixtures
//
// The fixtures.go file provides sample protocol data:
//
//   - SamplePDB - a tiny but well-formed PDB payload
//   - SampleConfigYAML(serverURL, stateDir) - config file content
//   - WriteConfigFile(t, dir, content) - writes a config.yaml
//   - SampleSnapshot(status) - a populated subscription snapshot
//
// # Timeouts and Waiting
//
// The timeout.go file bounds test operations:
//
//   - ContextWithTestDeadline(t, fallback) - context honoring -timeout
//   - WaitFor(t, timeout, cond, msg) - polls until cond or fails
//
// # Assertions
//
// The assertions.go file provides workflow-specific assertions:
//
//   - AssertSnapshotStatus(t, snap, status)
//   - AssertSnapshotFailed(t, snap, reason)
//   - AssertSnapshotComplete(t, snap)
//   - WaitForTerminal(t, sub, timeout) - drains a subscription to its
//     final snapshot
package testutil
