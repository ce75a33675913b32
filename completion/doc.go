// Package completion executes one shaped completion request against a
// provider and turns the response, streamed or not, into assistant text.
//
// Design decisions:
//   - The provider families decide URLs, headers, and body shapes; this
//     package only owns transport, timeouts, and the SSE read loop.
//   - No retries and no backoff. A request either completes within the
//     client's bound or fails with a typed error the caller can classify.
//   - Stream deltas are delivered synchronously and in order through a
//     plain callback; there are no channels in the public surface.
//   - A malformed stream frame costs one empty delta, never the stream.
package completion
