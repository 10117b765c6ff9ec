// Command worker runs the Temporal worker hosting the agent execution
// workflow and its activities.
package main

import (
	"context"
	"crypto/tls"
	"flag"

	"go.temporal.io/sdk/client"
	temporalworker "go.temporal.io/sdk/worker"
	"goa.design/clue/log"

	"github.com/truss-ai/truss/activities"
	"github.com/truss-ai/truss/config"
	"github.com/truss-ai/truss/llm/openai"
	"github.com/truss-ai/truss/model"
	"github.com/truss-ai/truss/storage"
	"github.com/truss-ai/truss/stream"
	"github.com/truss-ai/truss/telemetry"
	"github.com/truss-ai/truss/tools"
	"github.com/truss-ai/truss/worker"
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
	log.Print(ctx, log.KV{K: "msg", V: "starting worker"},
		log.KV{K: "temporal", V: cfg.TemporalURL},
		log.KV{K: "task-queue", V: cfg.TaskQueue})

	store, err := storageOpen(ctx, cfg)
	if err != nil {
		log.Fatalf(ctx, err, "open storage")
	}
	defer store.Close()

	registry, err := tools.NewDefaultRegistry(tools.BuiltinConfig{
		SerperAPIKey: cfg.SerperAPIKey,
		StockAPIKey:  cfg.StockAPIKey,
	})
	if err != nil {
		log.Fatalf(ctx, err, "build tool registry")
	}

	streamer, err := openai.NewFromAPIKey(cfg.OpenAIAPIKey, registry)
	if err != nil {
		log.Fatalf(ctx, err, "build llm client")
	}

	defaultLLM, err := model.NewLLMConfig(cfg.OpenAIModel)
	if err != nil {
		log.Fatalf(ctx, err, "default llm config")
	}

	metrics := telemetry.NewMetrics()
	llmActs, err := activities.NewLLMActivities(activities.LLMOptions{
		Streamer:   streamer,
		Store:      store,
		Publishers: stream.RedisFactory(cfg.RedisURL),
		DefaultLLM: defaultLLM,
		Metrics:    metrics,
	})
	if err != nil {
		log.Fatalf(ctx, err, "build llm activities")
	}

	opts := client.Options{HostPort: cfg.TemporalURL}
	if cfg.TemporalTLS {
		opts.ConnectionOptions = client.ConnectionOptions{TLS: &tls.Config{}}
	}
	c, err := client.Dial(opts)
	if err != nil {
		log.Fatalf(ctx, err, "dial temporal at %s", cfg.TemporalURL)
	}
	defer c.Close()

	w, err := worker.New(c, worker.Options{
		TaskQueue: cfg.TaskQueue,
		Storage:   activities.NewStorageActivities(store, metrics),
		LLM:       llmActs,
		Tools:     activities.NewToolActivities(registry, metrics),
	})
	if err != nil {
		log.Fatalf(ctx, err, "build worker")
	}

	if err := w.Run(temporalworker.InterruptCh()); err != nil {
		log.Fatalf(ctx, err, "worker stopped")
	}
	log.Printf(ctx, "exited")
}

// storageOpen opens the store and applies the optional AGENTS_FILE seed.
func storageOpen(ctx context.Context, cfg config.Config) (storage.Store, error) {
	store, err := storage.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if cfg.AgentsFile != "" {
		seeded, err := config.SeedAgents(ctx, store, cfg.AgentsFile)
		if err != nil {
			store.Close()
			return nil, err
		}
		log.Print(ctx, log.KV{K: "msg", V: "agents seeded"},
			log.KV{K: "file", V: cfg.AgentsFile},
			log.KV{K: "count", V: len(seeded)})
	}
	return store, nil
}
