// Command api serves the HTTP front end: health checks, session creation and
// run starts against the Temporal-backed execution core.
package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.temporal.io/sdk/client"
	"goa.design/clue/log"

	"github.com/truss-ai/truss/api"
	"github.com/truss-ai/truss/config"
	"github.com/truss-ai/truss/storage"
)

func main() {
	dbgF := flag.Bool("debug", false, "Enable debug logs")
	flag.Parse()

	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))
	if *dbgF {
		ctx = log.Context(ctx, log.WithDebug())
		log.Debugf(ctx, "debug logs enabled")
	}

	cfg := config.Load()
	log.Print(ctx, log.KV{K: "msg", V: "starting api"},
		log.KV{K: "addr", V: cfg.HTTPAddr},
		log.KV{K: "temporal", V: cfg.TemporalURL})

	store, err := storage.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf(ctx, err, "open storage")
	}
	defer store.Close()
	if cfg.AgentsFile != "" {
		seeded, err := config.SeedAgents(ctx, store, cfg.AgentsFile)
		if err != nil {
			log.Fatalf(ctx, err, "seed agents from %s", cfg.AgentsFile)
		}
		log.Print(ctx, log.KV{K: "msg", V: "agents seeded"}, log.KV{K: "count", V: len(seeded)})
	}

	// Lazy client: /health must answer while Temporal is still coming up, so
	// the connection is established on first use rather than at startup.
	opts := client.Options{HostPort: cfg.TemporalURL}
	if cfg.TemporalTLS {
		opts.ConnectionOptions = client.ConnectionOptions{TLS: &tls.Config{}}
	}
	c, err := client.NewLazyClient(opts)
	if err != nil {
		log.Fatalf(ctx, err, "configure temporal client")
	}
	defer c.Close()

	handler := api.New(store, c, cfg.TaskQueue)
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      log.HTTP(ctx)(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errc := make(chan error)
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-c)
	}()
	go func() {
		log.Printf(ctx, "listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	log.Printf(ctx, "exiting (%v)", <-errc)
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, err, log.KV{K: "msg", V: "shutdown"})
	}
	log.Printf(ctx, "exited")
}
