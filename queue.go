package chatanyllm

// workItem is one unit of generation work: either a fresh send or a
// regeneration. Regenerations carry the target message by ID so queued
// entries stay valid even if the conversation grows before they run.
type workItem struct {
	conversationID string

	// content is the user's text for a fresh send.
	content string

	// messageID targets the assistant message to regenerate.
	messageID string

	regen bool
}

// workQueue is the FIFO overflow list behind the single busy slot. It is
// not safe for concurrent use; the manager's mutex guards it.
type workQueue struct {
	items []workItem
}

func (q *workQueue) push(item workItem) {
	q.items = append(q.items, item)
}

func (q *workQueue) pop() (workItem, bool) {
	if len(q.items) == 0 {
		return workItem{}, false
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, true
}

func (q *workQueue) len() int { return len(q.items) }
