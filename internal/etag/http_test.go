package etag

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

var page = Payload{
	Body:            []byte("<html>hello</html>"),
	ContentType:     "text/html; charset=utf-8",
	ContentEncoding: "gzip",
}

func TestServeNotModified(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderIfNoneMatch, `"abc123"`)
	rec := httptest.NewRecorder()

	outcome := Serve(rec, req, `"abc123"`, page)

	assert.Equal(t, Unchanged, outcome)
	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Empty(t, rec.Body.Bytes())
	assert.Equal(t, []string{`"abc123"`}, rec.Result().Header.Values(HeaderETag))
	assert.Empty(t, rec.Header().Get("Content-Encoding"))
	assert.Empty(t, rec.Header().Get("Content-Type"))
}

func TestServeDeliver(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderIfNoneMatch, `"zzz999"`)
	rec := httptest.NewRecorder()

	outcome := Serve(rec, req, `"abc123"`, page)

	assert.Equal(t, Deliver, outcome)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, page.Body, rec.Body.Bytes())
	assert.Equal(t, `"abc123"`, rec.Header().Get(HeaderETag))
	assert.Equal(t, CacheControl, rec.Header().Get("Cache-Control"))
	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
	assert.Equal(t, page.ContentType, rec.Header().Get("Content-Type"))
}

func TestServeWithoutValidator(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	assert.Equal(t, Deliver, Serve(rec, req, `"abc123"`, page))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, page.Body, rec.Body.Bytes())
}
