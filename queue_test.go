package chatanyllm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkQueueFIFO(t *testing.T) {
	var q workQueue
	assert.Equal(t, 0, q.len())

	_, ok := q.pop()
	assert.False(t, ok)

	q.push(workItem{content: "a"})
	q.push(workItem{content: "b"})
	q.push(workItem{messageID: "m1", regen: true})
	assert.Equal(t, 3, q.len())

	item, ok := q.pop()
	require.True(t, ok)
	assert.Equal(t, "a", item.content)

	item, ok = q.pop()
	require.True(t, ok)
	assert.Equal(t, "b", item.content)

	item, ok = q.pop()
	require.True(t, ok)
	assert.True(t, item.regen)
	assert.Equal(t, "m1", item.messageID)

	_, ok = q.pop()
	assert.False(t, ok)
}
