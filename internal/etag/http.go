package etag

import (
	"net/http"
	"strconv"
)

const (
	// HeaderIfNoneMatch carries the client validator.
	HeaderIfNoneMatch = "If-None-Match"

	// HeaderETag carries the current fingerprint.
	HeaderETag = "ETag"

	// CacheControl asks clients to revalidate every time.
	CacheControl = "no-cache, must-revalidate"
)

// Payload is a response body with its representation headers.
type Payload struct {
	Body            []byte
	ContentType     string
	ContentEncoding string
}

// Serve answers r conditionally. Unchanged responses carry only the ETag
// header and an empty body; delivered responses carry the payload, the ETag
// and the caching policy.
func Serve(w http.ResponseWriter, r *http.Request, current Fingerprint, p Payload) Outcome {
	h := w.Header()
	h.Set(HeaderETag, string(current))

	outcome := Evaluate(r.Header.Get(HeaderIfNoneMatch), current)
	if outcome == Unchanged {
		w.WriteHeader(http.StatusNotModified)
		return outcome
	}

	if p.ContentType != "" {
		h.Set("Content-Type", p.ContentType)
	}
	if p.ContentEncoding != "" {
		h.Set("Content-Encoding", p.ContentEncoding)
	}
	h.Set("Cache-Control", CacheControl)
	h.Set("Content-Length", strconv.Itoa(len(p.Body)))
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = w.Write(p.Body)
	}
	return outcome
}
