// Package utils provides shared low-level helpers used throughout the
// conduit internals. It covers HTTP request helpers for both synchronous and
// streaming communication with LLM provider APIs, scanners for the two
// streaming wire shapes we consume (Server-Sent Events and newline-delimited
// JSON), lenient JSON parsing with automatic repair, and small generic
// utilities.
//
// Key entry points: [DoPostSync] for synchronous JSON round-trips,
// [DoPostStream] together with [SSEScanner] or [LineScanner] for streaming
// consumption, [LenientUnmarshal] for malformed-line tolerance, [Ptr] for
// converting values to pointers, and [Timer] for measuring latency.
package utils
