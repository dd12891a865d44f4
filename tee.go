package markupcheck

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"golang.org/x/text/encoding"
)

// ResponseWriter tees everything a handler writes: bytes flow through to
// the client unchanged while a copy accumulates in a capture buffer, so the
// finished document can be validated and the verdict appended before the
// exchange ends.
//
// A handler picks exactly one output surface per exchange: Stream for raw
// bytes or Writer for text. The wrapper's own Write implements
// http.ResponseWriter by acquiring the byte surface, so plain handlers keep
// working unchanged. Asking for the second surface once the first is taken
// fails with a *ModeConflictError.
//
// A ResponseWriter belongs to one exchange and, like the
// http.ResponseWriter it wraps, must not be used concurrently.
type ResponseWriter struct {
	rw  http.ResponseWriter
	ctx context.Context
	f   *Filter

	isHTML      bool
	wroteHeader bool
	finalized   bool

	stream           *TeeStream
	writer           *TeeWriter
	streamAcquiredAt uint64
	writerAcquiredAt uint64
}

// newResponseWriter wraps rw for one exchange. isHTML is the dispatcher's
// URL-based pre-classification; the live Content-Type overrides it once
// writing starts. A nil f makes Finalize a no-op.
func newResponseWriter(ctx context.Context, rw http.ResponseWriter, isHTML bool, f *Filter) *ResponseWriter {
	return &ResponseWriter{rw: rw, ctx: ctx, f: f, isHTML: isHTML}
}

// Header returns the header map of the wrapped writer.
func (w *ResponseWriter) Header() http.Header { return w.rw.Header() }

// Write acquires the byte-oriented surface and writes p through it. This is
// what makes the wrapper a drop-in http.ResponseWriter.
func (w *ResponseWriter) Write(p []byte) (int, error) {
	s, err := w.Stream()
	if err != nil {
		return 0, err
	}
	return s.Write(p)
}

// WriteHeader settles the framing headers and forwards code. Like net/http
// itself, it does not protect against being called twice.
func (w *ResponseWriter) WriteHeader(code int) {
	w.refreshClassification()
	w.settleHeaders()
	w.rw.WriteHeader(code)
}

// Stream returns the byte-oriented output surface, creating it on first
// call. It fails with a *ModeConflictError once Writer has been called for
// this exchange.
func (w *ResponseWriter) Stream() (*TeeStream, error) {
	if w.writer != nil {
		return nil, &ModeConflictError{Requested: ModeStream, Acquired: ModeWriter, AcquiredAt: w.writerAcquiredAt}
	}
	if w.stream == nil {
		w.streamAcquiredAt = nextCallID()
		w.stream = &TeeStream{w: w}
	}
	return w.stream, nil
}

// Writer returns the character-oriented output surface, creating it on
// first call. The exchange's charset is settled at that moment: text is
// encoded with it on the way to the client. Writer fails with a
// *ModeConflictError once Stream (or a direct Write) has been used.
func (w *ResponseWriter) Writer() (*TeeWriter, error) {
	if w.stream != nil {
		return nil, &ModeConflictError{Requested: ModeWriter, Acquired: ModeStream, AcquiredAt: w.streamAcquiredAt}
	}
	if w.writer == nil {
		w.writerAcquiredAt = nextCallID()
		w.writer = &TeeWriter{w: w, enc: encoderFor(w.charset())}
	}
	return w.writer, nil
}

// Flush pushes buffered bytes to the client when the wrapped writer
// supports it. The capture buffer is not touched.
func (w *ResponseWriter) Flush() { flushResponse(w.rw) }

// Unwrap exposes the wrapped writer to http.ResponseController.
func (w *ResponseWriter) Unwrap() http.ResponseWriter { return w.rw }

// ResetBuffer drops everything captured so far. When the wrapped writer can
// un-buffer its own output and exposes the same method, the reset is
// forwarded, keeping the capture in step with what is still destined for
// the client.
func (w *ResponseWriter) ResetBuffer() {
	switch {
	case w.stream != nil:
		w.stream.buf.Reset()
	case w.writer != nil:
		w.writer.buf.Reset()
	}
	if br, ok := w.rw.(interface{ ResetBuffer() }); ok {
		br.ResetBuffer()
	}
}

// Finalize appends the validation outcome to the exchange. It runs exactly
// once, whether triggered by Close on an output surface or by the
// dispatcher after the handler returned; later calls do nothing.
func (w *ResponseWriter) Finalize() {
	if w.finalized {
		return
	}
	w.finalized = true
	if w.f != nil {
		w.f.finalizeExchange(w)
	}
}

// refreshClassification re-reads the live Content-Type; it wins over the
// dispatcher's URL-based guess, in either direction, until the headers go
// out.
func (w *ResponseWriter) refreshClassification() {
	if ct := w.rw.Header().Get("Content-Type"); ct != "" {
		w.isHTML = strings.HasPrefix(ct, "text/html")
	}
}

// settleHeaders runs once, ahead of the first byte going out. An HTML
// exchange loses any declared Content-Length because the verdict script is
// appended to the body later, so the transport has to pick its own
// framing; a non-HTML exchange keeps whatever length the handler declared.
func (w *ResponseWriter) settleHeaders() {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	if w.isHTML {
		w.rw.Header().Del("Content-Length")
	}
}

func (w *ResponseWriter) beforeWrite() {
	w.refreshClassification()
	w.settleHeaders()
}

// charset returns the charset parameter of the live Content-Type, or UTF-8.
func (w *ResponseWriter) charset() string {
	if cs := charsetParam(w.rw.Header().Get("Content-Type")); cs != "" {
		return cs
	}
	return "utf-8"
}

// bufferedHTML returns the captured body decoded to a string and whether
// any output surface was acquired at all.
func (w *ResponseWriter) bufferedHTML() (string, bool) {
	switch {
	case w.stream != nil:
		return decodeCharset(w.stream.buf.Bytes(), w.charset()), true
	case w.writer != nil:
		return w.writer.buf.String(), true
	default:
		return "", false
	}
}

// appendAndFlush pushes s to the client through whichever surface the
// exchange acquired, bypassing the capture buffer so appended markup never
// feeds back into validation.
func (w *ResponseWriter) appendAndFlush(s string) error {
	switch {
	case w.stream != nil:
		out := s
		if enc := encoderFor(w.charset()); enc != nil {
			if encoded, err := enc.String(s); err == nil {
				out = encoded
			}
		}
		if _, err := w.rw.Write([]byte(out)); err != nil {
			return err
		}
	case w.writer != nil:
		if _, err := w.writer.writeThrough(s); err != nil {
			return err
		}
	default:
		return errors.New("no output surface acquired")
	}
	flushResponse(w.rw)
	return nil
}

// TeeStream is the byte-oriented output surface of an exchange. Writes pass
// through to the client and accumulate in the capture buffer.
type TeeStream struct {
	w        *ResponseWriter
	buf      bytes.Buffer
	closed   bool
	closedAt uint64
}

func (s *TeeStream) Write(p []byte) (int, error) {
	if s.closed {
		return 0, &WriteAfterCloseError{Mode: ModeStream, ClosedAt: s.closedAt}
	}
	s.w.beforeWrite()
	s.buf.Write(p)
	return s.w.rw.Write(p)
}

// Flush pushes buffered bytes to the client. The capture buffer stays as
// it is.
func (s *TeeStream) Flush() { flushResponse(s.w.rw) }

// Close finalizes the exchange and rejects all further writes. Closing
// again does nothing.
func (s *TeeStream) Close() error {
	if s.closed {
		return nil
	}
	s.w.Finalize()
	s.closed = true
	s.closedAt = nextCallID()
	flushResponse(s.w.rw)
	return nil
}

// TeeWriter is the character-oriented output surface of an exchange. Text
// passes through to the client, encoded in the exchange's charset, and
// accumulates in the capture buffer.
type TeeWriter struct {
	w   *ResponseWriter
	buf strings.Builder
	// enc converts outgoing text to the exchange charset; nil passes
	// UTF-8 through untouched.
	enc      *encoding.Encoder
	closed   bool
	closedAt uint64
}

func (tw *TeeWriter) WriteString(s string) (int, error) {
	if tw.closed {
		return 0, &WriteAfterCloseError{Mode: ModeWriter, ClosedAt: tw.closedAt}
	}
	tw.w.beforeWrite()
	tw.buf.WriteString(s)
	return tw.writeThrough(s)
}

// Write interprets p as UTF-8 text, which lets the surface serve as an
// io.Writer for fmt.Fprintf and friends.
func (tw *TeeWriter) Write(p []byte) (int, error) {
	return tw.WriteString(string(p))
}

func (tw *TeeWriter) WriteRune(r rune) (int, error) {
	return tw.WriteString(string(r))
}

// Flush pushes buffered bytes to the client. The capture buffer stays as
// it is.
func (tw *TeeWriter) Flush() { flushResponse(tw.w.rw) }

// Close finalizes the exchange and rejects all further writes. Closing
// again does nothing.
func (tw *TeeWriter) Close() error {
	if tw.closed {
		return nil
	}
	tw.w.Finalize()
	tw.closed = true
	tw.closedAt = nextCallID()
	flushResponse(tw.w.rw)
	return nil
}

// writeThrough sends s to the client without capturing it.
func (tw *TeeWriter) writeThrough(s string) (int, error) {
	out := s
	if tw.enc != nil {
		if encoded, err := tw.enc.String(s); err == nil {
			out = encoded
		}
	}
	if _, err := io.WriteString(tw.w.rw, out); err != nil {
		return 0, err
	}
	return len(s), nil
}

// flushResponse pushes buffered bytes to the client when rw supports it.
func flushResponse(rw http.ResponseWriter) {
	if f, ok := rw.(http.Flusher); ok {
		f.Flush()
	}
}
