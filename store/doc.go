// Package store persists conversations, provider credentials, custom
// endpoints, and chat settings in a single sqlite database file.
//
// Design decisions:
//   - Conversations are stored as one JSON blob per row. The chat manager
//     always writes whole conversations, so row-per-message granularity
//     would only add joins.
//   - Reads are tolerant: a row that no longer decodes is skipped (or
//     reported as absent), never fatal. A corrupt record must not take the
//     whole history down with it.
//   - All writes are upserts keyed on natural IDs.
//   - modernc.org/sqlite keeps the build cgo-free.
package store
