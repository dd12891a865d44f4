// Package markupcheck intercepts rendered HTML responses, has them checked
// by a W3C-style markup-validation service, and injects a floating status
// box with the verdict and a link to the full result page before the
// response finishes. Handlers keep writing to what looks like a plain
// http.ResponseWriter; the middleware does the rest.
package markupcheck

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/validatehq/markupcheck/w3c"
)

// Validator is the part of the w3c client the filter needs. It exists so
// tests can swap in a fake validation service.
type Validator interface {
	Validate(ctx context.Context, html string) (*w3c.Result, error)
}

type contextKey string

// insideKey marks requests that are already being intercepted, so nested
// dispatch through the same middleware passes straight through.
const insideKey contextKey = "inside markupcheck.Filter"

// Filter is the interception middleware. Build one per server with New and
// mount it with Middleware. A Filter is safe for concurrent use.
type Filter struct {
	cfg       Config
	validator Validator
	cache     *ResultCache
	appendix  string
	log       zerolog.Logger
}

// FilterOption configures a Filter beyond its Config.
type FilterOption func(*Filter)

// WithValidator replaces the built-in w3c client.
func WithValidator(v Validator) FilterOption {
	return func(f *Filter) { f.validator = v }
}

// WithLogger sets the logger used when a request carries no context logger
// of its own. Without it the filter stays silent.
func WithLogger(log zerolog.Logger) FilterOption {
	return func(f *Filter) { f.log = log }
}

// New builds a Filter from cfg, filling zero values with defaults.
func New(cfg Config, opts ...FilterOption) *Filter {
	cfg = cfg.withDefaults()
	f := &Filter{
		cfg:      cfg,
		cache:    NewResultCache(cfg.CacheSize),
		appendix: bootstrapFragment(cfg.JQueryURL),
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.validator == nil {
		f.validator = w3c.NewClient(cfg.CheckURL, w3c.WithTimeout(cfg.Timeout))
	}
	return f
}

// Middleware mounts the filter around next. Reserved result-page URLs are
// served from the cache, everything else is wrapped in the response tee and
// finalized after the handler returns.
func (f *Filter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if !f.cfg.Enabled || r.Context().Value(insideKey) != nil {
			next.ServeHTTP(rw, r)
			return
		}
		r = r.WithContext(context.WithValue(r.Context(), insideKey, true))

		if strings.Contains(r.URL.Path, ResultPathMarker) {
			f.serveResult(rw, r)
			return
		}

		isHTML := htmlCandidate(r.URL.Path)
		f.logger(r.Context()).Debug().
			Str("path", r.URL.Path).
			Bool("html_candidate", isHTML).
			Msg("intercepting response")

		tee := newResponseWriter(r.Context(), rw, isHTML, f)
		next.ServeHTTP(tee, r)
		// Safety net for handlers that never close their output surface.
		tee.Finalize()
	})
}

// htmlCandidate pre-classifies a request by its path suffix. The live
// Content-Type has the last word once the handler writes.
func htmlCandidate(path string) bool {
	return strings.HasSuffix(path, "/") ||
		strings.HasSuffix(path, ".html") ||
		strings.HasSuffix(path, ".htm")
}

// serveResult answers a view-result URL with the stored validator page.
func (f *Filter) serveResult(rw http.ResponseWriter, r *http.Request) {
	log := f.logger(r.Context())
	path := r.URL.Path
	id, err := strconv.Atoi(path[strings.LastIndex(path, "-")+1:])
	if err != nil {
		log.Warn().Str("path", path).Msg("malformed validation result id")
		http.Error(rw, "malformed validation result id", http.StatusBadRequest)
		return
	}
	res, err := f.cache.Get(id)
	if err != nil {
		log.Warn().Int("result_id", id).Err(err).Msg("validation result not cached")
		http.Error(rw, err.Error(), http.StatusNotFound)
		return
	}
	rw.Header().Set("Content-Type", "text/html; charset=UTF-8")
	if _, err := io.WriteString(rw, res.Page); err != nil {
		log.Error().Err(err).Msg("write validation result page")
	}
}

// finalizeExchange appends the validation outcome to a finished HTML
// exchange. The idempotence guard lives in ResponseWriter.Finalize.
func (f *Filter) finalizeExchange(w *ResponseWriter) {
	if !w.isHTML {
		return
	}
	html, ok := w.bufferedHTML()
	if !ok {
		return
	}
	// Only complete documents are validated; fragments pass unchanged.
	trimmed := strings.TrimSpace(html)
	if !strings.HasSuffix(strings.ToLower(trimmed), "</html>") {
		return
	}

	log := f.logger(w.ctx)
	// The box goes out first, in its "running" state, so the page keeps
	// rendering while the validation round trip is in flight.
	if err := w.appendAndFlush(f.appendix); err != nil {
		log.Error().Err(err).Msg("append validation bootstrap")
		return
	}
	if f.cfg.PreProcess != nil {
		html = f.cfg.PreProcess(html)
	}

	var script string
	res, err := f.validator.Validate(w.ctx, html)
	if err != nil {
		log.Warn().Err(err).Msg("markup validation failed")
		script = failureScript(err.Error())
	} else {
		id := f.cache.Put(res)
		log.Info().Bool("valid", res.Valid).Int("result_id", id).Msg("markup validated")
		script = resultScript(res, id)
	}
	if err := w.appendAndFlush(script); err != nil {
		log.Error().Err(err).Msg("append validation verdict")
	}
}

// logger prefers the request-scoped logger that hlog-style middleware puts
// on the context and falls back to the filter's own.
func (f *Filter) logger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &f.log
}
