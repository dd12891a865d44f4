// Package demosite serves a tiny site with deliberately mixed markup
// quality, used to exercise the validation middleware by hand and in tests.
package demosite

import (
	"bytes"
	"encoding/json"
	"html/template"
	"log"
	"net/http"

	scs "github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/yuin/goldmark"
)

type Server struct {
	Router *chi.Mux
	Sess   *scs.SessionManager
	Tmpl   *template.Template
	md     goldmark.Markdown
}

type ServerOptions struct {
	Sess *scs.SessionManager
}

func New(opts ServerOptions) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	s := &Server{
		Router: r,
		Sess:   opts.Sess,
		Tmpl:   template.Must(template.New("demosite").Parse(templateSrc)),
		md:     goldmark.New(),
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("ok")); err != nil {
			log.Printf("Error writing health check response: %v", err)
		}
	})

	r.Get("/", s.handleHome)
	r.Get("/about.html", s.handleAbout)
	r.Get("/markup-sins.html", s.handleMarkupSins)
	r.Get("/snippet.html", s.handleSnippet)
	r.Get("/api/status.json", s.handleStatus)

	return s
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.Tmpl.ExecuteTemplate(w, name, data); err != nil {
		log.Printf("render template %s failed: %v", name, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	visitorID := s.Sess.GetString(r.Context(), "visitor_id")
	if visitorID == "" {
		visitorID = uuid.NewString()
		s.Sess.Put(r.Context(), "visitor_id", visitorID)
	}
	visits := s.Sess.GetInt(r.Context(), "visits") + 1
	s.Sess.Put(r.Context(), "visits", visits)

	s.render(w, "home", map[string]any{
		"Title":     "Markup validation demo",
		"VisitorID": visitorID,
		"Visits":    visits,
	})
}

func (s *Server) handleAbout(w http.ResponseWriter, r *http.Request) {
	var body bytes.Buffer
	if err := s.md.Convert([]byte(aboutMarkdown), &body); err != nil {
		log.Printf("render about markdown failed: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	s.render(w, "about", map[string]any{
		"Title": "About",
		"Body":  template.HTML(body.String()),
	})
}

func (s *Server) handleMarkupSins(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write([]byte(markupSinsPage)); err != nil {
		log.Printf("Error writing markup sins page: %v", err)
	}
}

func (s *Server) handleSnippet(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write([]byte(snippetPage)); err != nil {
		log.Printf("Error writing snippet: %v", err)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	status := map[string]any{
		"status": "ok",
		"visits": s.Sess.GetInt(r.Context(), "visits"),
	}
	if err := json.NewEncoder(w).Encode(status); err != nil {
		log.Printf("Error encoding status response: %v", err)
	}
}

const templateSrc = `{{define "home"}}<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
<p>Visitor {{.VisitorID}}, view number {{.Visits}}.</p>
<ul>
<li><a href="/about.html">About</a></li>
<li><a href="/markup-sins.html">A page with markup sins</a></li>
<li><a href="/snippet.html">An HTML fragment</a></li>
</ul>
</body>
</html>{{end}}

{{define "about"}}<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
{{.Body}}
</body>
</html>{{end}}
`

const aboutMarkdown = `# About this demo

Every HTML page served here passes through the validation middleware on
its way out. Pages that end with a closing html tag are posted to the
configured validation service, and a small status box in the corner
reports the verdict.

* The home page and this page should come back **valid**.
* The [markup sins page](/markup-sins.html) should come back *invalid*.
* The [snippet](/snippet.html) is a fragment and is left alone.
`

// Deliberate sins: no doctype, an unclosed paragraph, a font tag and a
// missing alt attribute.
const markupSinsPage = `<html>
<head><title>Markup sins</title></head>
<body>
<p>This page commits markup sins on purpose, so the validation service
has something to complain about.
<font color="red">Deprecated styling</font>
<img src="/missing-alt.png">
</body>
</html>
`

const snippetPage = `<div class="snippet">
<p>Just a fragment, no document shell.</p>
</div>
`
