// Command knolsrs schedules flashcard reviews with SM-2.
//
// Usage:
//
//	knolsrs [flags] stats|review|sync|serve
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/pflag"

	"github.com/conorfennell/knolsrs/internal/config"
	"github.com/conorfennell/knolsrs/internal/content"
	"github.com/conorfennell/knolsrs/internal/domain"
	"github.com/conorfennell/knolsrs/internal/drill"
	"github.com/conorfennell/knolsrs/internal/session"
	"github.com/conorfennell/knolsrs/internal/srs"
	"github.com/conorfennell/knolsrs/internal/stats"
	"github.com/conorfennell/knolsrs/internal/storage"
	"github.com/conorfennell/knolsrs/internal/web"
)

type app struct {
	cfg    *config.Config
	logger *slog.Logger
	store  storage.Store
	sched  *srs.Scheduler
	loader *content.Loader
	topic  string
}

func main() {
	// 1. Flags and configuration
	fs := pflag.NewFlagSet("knolsrs", pflag.ExitOnError)
	config.RegisterFlags(fs)
	topic := fs.String("topic", "", "Only review cards from this topic")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: knolsrs [flags] stats|review|sync|serve\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(os.Args[1:])

	cfg, err := config.Load(fs)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger := cfg.Log.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Review store and scheduler
	store, err := storage.OpenStore(cfg.Store.Driver, cfg.Store.Path)
	if err != nil {
		logger.Error("Failed to open review store", "path", cfg.Store.Path, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	a := &app{
		cfg:    cfg,
		logger: logger,
		store:  store,
		sched:  srs.Open(ctx, store, srs.WithLogger(logger)),
		topic:  *topic,
	}
	loaderOpts := []content.Option{content.WithLogger(logger)}
	if db, ok := store.(*storage.DB); ok {
		loaderOpts = append(loaderOpts, content.WithTracker(db))
	}
	a.loader = content.NewLoader(cfg.Content.ReposDir, loaderOpts...)

	// 3. Dispatch
	cmd := fs.Arg(0)
	if cmd == "" {
		cmd = "stats"
	}
	switch cmd {
	case "stats":
		err = a.stats(ctx)
	case "review":
		err = a.review(ctx)
	case "sync":
		err = a.sync(ctx)
	case "serve":
		err = a.serve(ctx)
	default:
		fs.Usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Error("Command failed", "command", cmd, "error", err)
		store.Close()
		os.Exit(1)
	}
}

// deck loads all content sources. A partial deck is still usable, so source
// errors are only logged.
func (a *app) deck(ctx context.Context) *content.Deck {
	deck, err := a.loader.Load(ctx, a.cfg.Content.Sources())
	if err != nil {
		a.logger.Warn("Some content sources failed to load", "error", err)
	}
	return deck
}

func (a *app) cards(deck *content.Deck) []domain.Card {
	if a.topic != "" {
		return deck.Topic(a.topic)
	}
	return deck.Cards()
}

func (a *app) stats(ctx context.Context) error {
	deck := a.deck(ctx)
	agg := stats.New(a.sched, stats.WithMasteryPolicy(a.cfg.Mastery.Policy()), stats.WithLogger(a.logger))
	summary := agg.Summarize(a.cards(deck), a.cfg.Stats.ForecastDays, a.cfg.Stats.LapseThreshold)

	out := struct {
		stats.Summary
		Sources []storage.Source `json:"sources,omitempty"`
	}{Summary: summary}
	if db, ok := a.store.(*storage.DB); ok {
		sources, err := db.Sources(ctx)
		if err != nil {
			return err
		}
		out.Sources = sources
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func (a *app) review(ctx context.Context) error {
	due := a.sched.DueCards(a.cards(a.deck(ctx)))
	if len(due) == 0 {
		fmt.Println("Nothing due.")
		return nil
	}
	_, err := drill.Run(ctx, session.New(a.sched, due), a.sched, os.Stdin, os.Stdout)
	return err
}

func (a *app) sync(ctx context.Context) error {
	deck, err := a.loader.Load(ctx, a.cfg.Content.Sources())
	fmt.Printf("Loaded %d cards in %d topics.\n", deck.Len(), len(deck.Topics()))
	return err
}

func (a *app) serve(ctx context.Context) error {
	cfg := web.Config{
		ForecastDays:   a.cfg.Stats.ForecastDays,
		LapseThreshold: a.cfg.Stats.LapseThreshold,
		Mastery:        a.cfg.Mastery.Policy(),
		Logger:         a.logger,
	}
	if db, ok := a.store.(*storage.DB); ok {
		cfg.History = db
	}
	server := web.NewServer(a.sched, a.deck(ctx), cfg)

	if schedule := a.cfg.Content.SyncSchedule; schedule != "" {
		c := cron.New()
		_, err := c.AddFunc(schedule, func() {
			a.logger.Info("Scheduled content sync")
			server.SetDeck(a.deck(ctx))
		})
		if err != nil {
			return fmt.Errorf("sync schedule %q: %w", schedule, err)
		}
		c.Start()
		defer func() { <-c.Stop().Done() }()
	}

	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Starting server", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
