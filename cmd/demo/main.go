// cmd/demo/main.go
package main

import (
	"log"
	"net/http"
	"os"
	"time"

	scs "github.com/alexedwards/scs/v2"
	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/validatehq/markupcheck"
	"github.com/validatehq/markupcheck/internal/demosite"
)

type demoConfig struct {
	Addr string `env:"DEMO_ADDR" envDefault:":8080"`
}

func main() {
	var cfg demoConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("config error: %v", err)
	}
	checkCfg, err := markupcheck.ConfigFromEnv()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	log.Printf("starting demo on %s", cfg.Addr)

	// Sessions
	sess := scs.New()
	sess.Lifetime = 12 * time.Hour
	sess.Cookie.HttpOnly = true
	sess.Cookie.SameSite = http.SameSiteLaxMode
	sess.Cookie.Secure = false

	// Validation middleware
	filter := markupcheck.New(checkCfg, markupcheck.WithLogger(logger))

	// Router / server
	s := demosite.New(demosite.ServerOptions{Sess: sess})
	h := hlog.NewHandler(logger)(filter.Middleware(s.Router))

	srv := &http.Server{Addr: cfg.Addr, Handler: sess.LoadAndSave(h)}
	log.Fatal(srv.ListenAndServe())
}
