// Command feedsim serves a simulated ranking API whose rankings keep moving.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/spf13/cobra"

	"github.com/okian/liveboard/internal/feedsim"
	"github.com/okian/liveboard/pkg/logger"
)

// HTTP server timeout constants.
const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

type feedCommand struct {
	addr     string
	shuffle  time.Duration
	cfg      feedsim.Config
	logLevel string
}

func newFeedCommand() *cobra.Command {
	fc := &feedCommand{cfg: feedsim.DefaultConfig()}

	cmd := &cobra.Command{
		Use:   "feedsim",
		Short: "Serve a simulated ranking API",
		Long: `Serve GET /events, /events/{id}/stages and /stages/{id}/rankings with
generated data. Every --shuffle interval one adjacent pair of participants
swaps places in each stage, so a live board pointed here keeps moving.`,
		SilenceUsage: true,
		RunE:         fc.run,
	}

	cmd.Flags().StringVar(&fc.addr, "addr", ":9090", "listen address")
	cmd.Flags().DurationVar(&fc.shuffle, "shuffle", 3*time.Second, "interval between ranking changes")
	cmd.Flags().IntVar(&fc.cfg.Events, "events", feedsim.DefaultEvents, "number of events")
	cmd.Flags().IntVar(&fc.cfg.Stages, "stages", feedsim.DefaultStages, "stages per event")
	cmd.Flags().IntVar(&fc.cfg.Participants, "participants", feedsim.DefaultParticipants, "participants per stage")
	cmd.Flags().DurationVar(&fc.cfg.LiveFor, "live-for", feedsim.DefaultLiveFor, "how long events stay live")
	cmd.Flags().Float64Var(&fc.cfg.FailureRate, "failure-rate", 0, "probability a rankings request fails")
	cmd.Flags().Float64Var(&fc.cfg.UpcomingRate, "upcoming-rate", 0, "share of events that have not started yet")
	cmd.Flags().StringVar(&fc.logLevel, "log-level", "info", "log level: debug, info, warn, error")

	return cmd
}

func (fc *feedCommand) run(cmd *cobra.Command, _ []string) error {
	if err := logger.Init(); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := logger.SetLevelString(fc.logLevel); err != nil {
		return err
	}
	log := logger.Named("feedsim")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	feed := feedsim.New(fc.cfg, time.Now(), feedsim.WithLogger(log))
	for _, ev := range feed.Events() {
		log.Info(ctx, "event", logger.String("id", ev.ID), logger.String("name", ev.Name),
			logger.String("start", ev.StartTime), logger.String("end", ev.EndTime))
	}
	go feed.Run(ctx, fc.shuffle)

	srv := &http.Server{
		Addr:              fc.addr,
		Handler:           handlers.CombinedLoggingHandler(cmd.ErrOrStderr(), feed.Handler()),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "serving simulated ranking API", logger.String("addr", fc.addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	st := feed.Stats()
	log.Info(context.Background(), "feed stopped",
		logger.Int("requests", int(st.Requests)),
		logger.Int("failures", int(st.Failures)),
		logger.Int("shuffles", int(st.Shuffles)),
	)
	return nil
}

func main() {
	if err := newFeedCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
