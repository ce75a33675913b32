package completion

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/chatanyllm/chatanyllm/provider"
)

// HTTPError is a non-2xx provider response. Body carries the leading bytes
// of the response so error surfaces can show what the provider said.
type HTTPError struct {
	Provider provider.Name
	Status   int
	Body     string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s api error: status %d", e.Provider, e.Status)
	}
	return fmt.Sprintf("%s api error: status %d: %s", e.Provider, e.Status, e.Body)
}

func newHTTPError(name provider.Name, resp *http.Response) *HTTPError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &HTTPError{Provider: name, Status: resp.StatusCode, Body: string(raw)}
}

// TimeoutError reports that a request exceeded the client's time bound.
type TimeoutError struct {
	Provider provider.Name
	Bound    time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s request timed out after %s", e.Provider, e.Bound)
}
