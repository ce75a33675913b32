// Package provider shapes outbound completion requests for each supported
// LLM provider and extracts assistant text from their responses.
//
// Design decisions:
//   - Per-provider behavior lives behind the Family interface; the rest of
//     the system never branches on a provider name.
//   - Families build wire requests as data (URL, headers, body bytes) and
//     never perform I/O themselves; the completion package owns transport.
//   - Response extraction is strict for known providers and tolerant for
//     custom endpoints, where the payload shape is unknowable up front.
//   - Frame decoding is byte-in, string-out and never fails: a malformed
//     stream chunk degrades to an empty delta instead of killing the stream.
//   - The model catalog preserves declaration order so the first model is a
//     stable default.
package provider
