// Package server provides an in-memory mock of the synde backend.
//
// The mock implements the chat REST API and the workflow SSE endpoint
// against scripted workflow runs, so the CLI and its packages can be
// developed and tested without GPU workers or the real service. Each sent
// message starts a runner goroutine that walks a node script derived from
// the prompt, appending live log lines and finishing with a canned result.
//
// # Endpoints
//
//   - POST /api/conversations/ - Create a conversation
//   - GET  /api/conversations/ - List conversations
//   - GET  /api/conversations/{id}/ - Conversation with message history
//   - POST /api/conversations/{id}/messages/ - Send a message, starts a workflow
//   - GET  /api/conversations/{id}/stream/{workflow}/ - SSE progress stream
//   - GET  /api/suggestions/ - Canned prompt catalog
//   - GET  /api/workflow/{id}/status/ - One-shot status snapshot
//   - GET  /api/workflow/{id}/logs/ - Incremental log fetch (?since=N)
//   - GET  /health - Liveness probe
//
// # Scenarios
//
// Prompts starting with a scenario keyword make the mock misbehave on
// purpose: "fail:" ends the workflow with a fatal error event, "timeout:"
// stalls it so streams age out, and "flaky:" cuts the stream mid-flight
// before eventually completing, exercising client reconnection.
package server
