package completion

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/chatanyllm/chatanyllm/provider"
)

// doneSentinel terminates OpenAI-compatible streams. Other providers just
// close the connection.
const doneSentinel = "[DONE]"

var dataPrefix = []byte("data:")

// decodeStream reads SSE frames, decodes each data payload through the
// family, and accumulates the deltas. Frames that are not data, carry no
// payload, or fail to decode are skipped; only a transport read failure
// aborts the stream. The accumulated text so far is returned even on error.
func decodeStream(fam provider.Family, r io.Reader, onDelta StreamFunc) (string, error) {
	var full strings.Builder

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), 1<<20)

	for sc.Scan() {
		data, ok := bytes.CutPrefix(sc.Bytes(), dataPrefix)
		if !ok {
			continue
		}
		data = bytes.TrimSpace(data)
		if len(data) == 0 {
			continue
		}
		if string(data) == doneSentinel {
			break
		}
		delta := fam.DecodeFrame(data)
		if delta == "" {
			continue
		}
		full.WriteString(delta)
		if onDelta != nil {
			onDelta(delta)
		}
	}
	if err := sc.Err(); err != nil {
		return full.String(), fmt.Errorf("read stream: %w", err)
	}
	return full.String(), nil
}
