package markupcheck

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTee(isHTML bool) (*ResponseWriter, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	return newResponseWriter(context.Background(), rec, isHTML, nil), rec
}

func TestTeeMirrorsWritesToClientAndBuffer(t *testing.T) {
	w, rec := newTestTee(true)

	s, err := w.Stream()
	require.NoError(t, err)
	_, err = s.Write([]byte("<html><body>"))
	require.NoError(t, err)
	_, err = s.Write([]byte("Hi</body></html>"))
	require.NoError(t, err)

	assert.Equal(t, "<html><body>Hi</body></html>", rec.Body.String())
	html, ok := w.bufferedHTML()
	require.True(t, ok)
	assert.Equal(t, "<html><body>Hi</body></html>", html)
}

func TestStreamThenWriterConflicts(t *testing.T) {
	w, _ := newTestTee(true)

	_, err := w.Stream()
	require.NoError(t, err)

	_, err = w.Writer()
	var conflict *ModeConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, ModeWriter, conflict.Requested)
	assert.Equal(t, ModeStream, conflict.Acquired)
	assert.NotZero(t, conflict.AcquiredAt)
	assert.Contains(t, err.Error(), "call #")
}

func TestWriterThenStreamConflicts(t *testing.T) {
	w, _ := newTestTee(true)

	_, err := w.Writer()
	require.NoError(t, err)

	_, err = w.Stream()
	var conflict *ModeConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, ModeStream, conflict.Requested)
	assert.Equal(t, ModeWriter, conflict.Acquired)
}

func TestDirectWriteCountsAsStreamAcquisition(t *testing.T) {
	w, _ := newTestTee(true)

	_, err := w.Write([]byte("<html>"))
	require.NoError(t, err)

	_, err = w.Writer()
	var conflict *ModeConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, ModeStream, conflict.Acquired)
}

func TestSameSurfaceIsReturnedAgain(t *testing.T) {
	w, _ := newTestTee(true)
	s1, err := w.Stream()
	require.NoError(t, err)
	s2, err := w.Stream()
	require.NoError(t, err)
	assert.Same(t, s1, s2)

	w2, _ := newTestTee(true)
	tw1, err := w2.Writer()
	require.NoError(t, err)
	tw2, err := w2.Writer()
	require.NoError(t, err)
	assert.Same(t, tw1, tw2)
}

func TestStreamWriteAfterClose(t *testing.T) {
	w, rec := newTestTee(true)
	s, err := w.Stream()
	require.NoError(t, err)
	_, err = s.Write([]byte("data"))
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.Write([]byte("late"))
	var werr *WriteAfterCloseError
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, ModeStream, werr.Mode)
	assert.NotZero(t, werr.ClosedAt)
	assert.Contains(t, err.Error(), "call #")
	assert.Equal(t, "data", rec.Body.String())
}

func TestWriterWriteAfterClose(t *testing.T) {
	w, _ := newTestTee(true)
	tw, err := w.Writer()
	require.NoError(t, err)
	_, err = tw.WriteString("data")
	require.NoError(t, err)
	require.NoError(t, tw.Close())

	writes := map[string]func() (int, error){
		"WriteString": func() (int, error) { return tw.WriteString("late") },
		"Write":       func() (int, error) { return tw.Write([]byte("late")) },
		"WriteRune":   func() (int, error) { return tw.WriteRune('x') },
	}
	for name, write := range writes {
		_, err := write()
		var werr *WriteAfterCloseError
		require.ErrorAs(t, err, &werr, name)
		assert.Equal(t, ModeWriter, werr.Mode, name)
		assert.NotZero(t, werr.ClosedAt, name)
	}
}

func TestHTMLExchangeDropsContentLength(t *testing.T) {
	w, rec := newTestTee(true)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", "28")

	_, err := w.Write([]byte("<html><body>x</body></html>"))
	require.NoError(t, err)

	assert.Empty(t, rec.Header().Get("Content-Length"))
}

func TestNonHTMLExchangeKeepsContentLength(t *testing.T) {
	w, rec := newTestTee(false)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", "2")

	_, err := w.Write([]byte("{}"))
	require.NoError(t, err)

	assert.Equal(t, "2", rec.Header().Get("Content-Length"))
}

func TestContentTypeOverridesPathClassification(t *testing.T) {
	// Pre-classified HTML, but the handler declares JSON before writing:
	// the declared length survives.
	w, rec := newTestTee(true)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", "2")
	_, err := w.Write([]byte("{}"))
	require.NoError(t, err)
	assert.Equal(t, "2", rec.Header().Get("Content-Length"))
	assert.False(t, w.isHTML)

	// Pre-classified non-HTML, but the handler serves HTML: the length
	// is dropped so the verdict can still be appended.
	w, rec = newTestTee(false)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", "28")
	_, err = w.Write([]byte("<html><body>x</body></html>"))
	require.NoError(t, err)
	assert.Empty(t, rec.Header().Get("Content-Length"))
	assert.True(t, w.isHTML)
}

func TestWriteHeaderSettlesFraming(t *testing.T) {
	w, rec := newTestTee(true)
	w.Header().Set("Content-Type", "text/html")
	w.Header().Set("Content-Length", "5")

	w.WriteHeader(http.StatusCreated)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Empty(t, rec.Header().Get("Content-Length"))
}

func TestWriterEncodesToExchangeCharset(t *testing.T) {
	w, rec := newTestTee(true)
	w.Header().Set("Content-Type", "text/html; charset=ISO-8859-1")

	tw, err := w.Writer()
	require.NoError(t, err)
	n, err := tw.WriteString("café")
	require.NoError(t, err)
	assert.Equal(t, len("café"), n)

	// The client sees latin-1 bytes, the capture keeps the text.
	assert.Equal(t, []byte{'c', 'a', 'f', 0xE9}, rec.Body.Bytes())
	html, ok := w.bufferedHTML()
	require.True(t, ok)
	assert.Equal(t, "café", html)
}

func TestStreamBufferDecodesExchangeCharset(t *testing.T) {
	w, _ := newTestTee(true)
	w.Header().Set("Content-Type", "text/html; charset=ISO-8859-1")

	_, err := w.Write([]byte{'c', 'a', 'f', 0xE9})
	require.NoError(t, err)

	html, ok := w.bufferedHTML()
	require.True(t, ok)
	assert.Equal(t, "café", html)
}

type resettableRecorder struct {
	*httptest.ResponseRecorder
	resets int
}

func (r *resettableRecorder) ResetBuffer() {
	r.resets++
	r.Body.Reset()
}

func TestResetBufferClearsCaptureAndForwards(t *testing.T) {
	rec := &resettableRecorder{ResponseRecorder: httptest.NewRecorder()}
	w := newResponseWriter(context.Background(), rec, true, nil)

	_, err := w.Write([]byte("draft"))
	require.NoError(t, err)
	w.ResetBuffer()

	html, ok := w.bufferedHTML()
	require.True(t, ok)
	assert.Empty(t, html)
	assert.Equal(t, 1, rec.resets)
}

func TestFlushReachesClient(t *testing.T) {
	w, rec := newTestTee(true)
	_, err := w.Write([]byte("chunk"))
	require.NoError(t, err)

	w.Flush()

	assert.True(t, rec.Flushed)
}

func TestUnwrapExposesWrappedWriter(t *testing.T) {
	w, rec := newTestTee(true)
	assert.Same(t, rec, w.Unwrap())
}

func TestBufferedHTMLWithoutAcquisition(t *testing.T) {
	w, _ := newTestTee(true)
	_, ok := w.bufferedHTML()
	assert.False(t, ok)
}
