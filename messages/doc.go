// Package messages defines the provider-neutral data model shared across the
// module: messages, conversations, and chat settings.
//
// Ownership rules:
//   - A Message belongs to exactly one Conversation.
//   - Messages are created and mutated only by the chat manager; other
//     components (providers, the completion client, views) receive copies
//     or read-only values.
//   - A pending or regenerating message is always the target of the single
//     in-flight generation; its ID travels with the request so mutation
//     never relies on slice positions.
package messages
