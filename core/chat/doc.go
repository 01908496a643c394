// Package chat implements the chat-turn pipeline: the domain model for
// conversations and messages, the unified event vocabulary emitted to
// callers, and the [Orchestrator] driving a single turn from inbound
// request through provider streaming to persisted state.
//
// One turn runs as a single cooperative chain of suspension points
// (provider reads, pacing delays, store writes), all cancellable through
// the request context. Concurrent turns share only read-mostly caches
// (pricing, tokenizer profiles).
package chat
