// Package chatanyllm is a multi-provider LLM chat core: one neutral
// conversation model, one completion pipeline, and a per-provider family
// abstraction that normalizes heterogeneous wire formats.
//
// Design decisions:
//   - One generation in flight across the whole application, enforced by a
//     single busy slot on the Manager. Work arriving while busy queues FIFO
//     and runs after the current generation's terminal transition.
//   - Conversations and messages are mutated only by the Manager; views and
//     hooks receive clones and snapshots.
//   - Generation failures become message state (StatusError with a
//     diagnostic content string), never errors returned from SendMessage.
//     The conversation stays usable after a failure.
//   - Every mutation persists a full conversation snapshot; writes are
//     serialized by the single-flight rule, so last write wins is safe.
//   - Provider differences live behind provider.Family; the Manager and the
//     completion client are provider-agnostic.
package chatanyllm
