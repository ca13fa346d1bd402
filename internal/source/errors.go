package source

import (
	"errors"
	"fmt"
	"io"
	"net/http"
)

var (
	// ErrMalformed marks a response body that did not decode into the expected shape.
	ErrMalformed = errors.New("malformed response")
	// ErrRejected marks a well-formed response in which the backend declined the action.
	ErrRejected = errors.New("rejected by backend")
)

// HTTPError is returned for non-2xx responses.
type HTTPError struct {
	URL, Status string
	StatusCode  int
	Message     string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s: %s", e.URL, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.URL, e.Status)
}

// check drains and closes non-2xx responses, turning them into an *HTTPError.
func check(r *http.Response) error {
	if r.StatusCode >= 200 && r.StatusCode < 300 {
		return nil
	}
	defer r.Body.Close()
	var body struct {
		Error string `json:"error"`
	}
	b, _ := io.ReadAll(io.LimitReader(r.Body, 4096))
	_ = decodeBytes(b, &body)
	return &HTTPError{
		URL:        r.Request.URL.Redacted(),
		Status:     r.Status,
		StatusCode: r.StatusCode,
		Message:    body.Error,
	}
}
