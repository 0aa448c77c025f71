// Command watch follows live rankings in the terminal.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/okian/liveboard/internal/adapters/mq/queue"
	"github.com/okian/liveboard/internal/adapters/mq/worker"
	"github.com/okian/liveboard/internal/adapters/rankingapi"
	"github.com/okian/liveboard/internal/adapters/terminal"
	"github.com/okian/liveboard/internal/aggregator"
	"github.com/okian/liveboard/internal/domain/annotate"
	"github.com/okian/liveboard/internal/domain/live"
	"github.com/okian/liveboard/internal/domain/merge"
	"github.com/okian/liveboard/internal/domain/model"
	"github.com/okian/liveboard/pkg/logger"
)

const shutdownTimeout = 5 * time.Second

// ErrNothingLive is returned when no entity was given and none is live.
var ErrNothingLive = errors.New("no entity given and no event is live")

type watchCommand struct {
	api      string
	token    string
	entities []string
	interval time.Duration
	cap      int
	noColor  bool
	logLevel string
}

func newWatchCommand() *cobra.Command {
	wc := &watchCommand{}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow live rankings in the terminal",
		Long: `Poll the ranking API for one or more events and redraw a table of the
top results on every change. Entries that climbed are marked ▲n, entries that
dropped ▼n and entries that were not ranked before NEW; the marks fade after a
short moment.

Without --entity, every event live right now is followed.`,
		SilenceUsage: true,
		RunE:         wc.run,
	}

	cmd.Flags().StringVar(&wc.api, "api", "http://localhost:9090", "base URL of the ranking API")
	cmd.Flags().StringVar(&wc.token, "token", "", "bearer token for the ranking API")
	cmd.Flags().StringSliceVarP(&wc.entities, "entity", "e", nil, "event id to follow (repeatable)")
	cmd.Flags().DurationVar(&wc.interval, "interval", aggregator.DefaultInterval, "poll interval")
	cmd.Flags().IntVar(&wc.cap, "cap", merge.DefaultCap, "results shown per event")
	cmd.Flags().BoolVar(&wc.noColor, "no-color", false, "disable colors and screen clearing")
	cmd.Flags().StringVar(&wc.logLevel, "log-level", "error", "log level: debug, info, warn, error")

	return cmd
}

func (wc *watchCommand) run(cmd *cobra.Command, _ []string) error {
	if wc.noColor {
		color.NoColor = true //nolint:reassign // intentional override of library global
	}
	if err := logger.Init(logger.WithWriter(cmd.ErrOrStderr())); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := logger.SetLevelString(wc.logLevel); err != nil {
		return err
	}
	log := logger.Get()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := rankingapi.NewClient(wc.api,
		rankingapi.WithToken(wc.token),
		rankingapi.WithLogger(log.Named("rankingapi")),
	)

	ids, err := wc.resolveEntities(ctx, client)
	if err != nil {
		return err
	}

	screen := terminal.NewScreen(cmd.OutOrStdout(), terminal.NewRenderer(terminal.WithColor(!wc.noColor)), ids)
	views := queue.NewInMemoryQueue()
	pool := worker.NewPool(views, []worker.Sink{screen}, worker.WithLogger(log.Named("worker")))
	pool.Start(ctx)

	tracker := annotate.NewTracker(
		annotate.WithOnView(func(v model.View) {
			if err := views.Enqueue(ctx, v); err != nil && !errors.Is(err, queue.ErrClosed) {
				log.Warn(ctx, "view dropped", logger.String("entity", v.EntityID), logger.Error(err))
			}
		}),
		annotate.WithLogger(log.Named("annotate")),
	)
	agg := aggregator.New(client,
		aggregator.WithInterval(wc.interval),
		aggregator.WithSnapshotCap(wc.cap),
		aggregator.WithListener(tracker.Observe),
		aggregator.WithLogger(log.Named("aggregator")),
	)

	if err := agg.Configure(ctx, ids); err != nil {
		return err
	}
	<-ctx.Done()

	agg.Close()
	tracker.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return pool.Shutdown(shutdownCtx)
}

func (wc *watchCommand) resolveEntities(ctx context.Context, client *rankingapi.Client) ([]string, error) {
	if len(wc.entities) > 0 {
		return wc.entities, nil
	}
	events, err := client.ListEvents(ctx)
	if err != nil {
		return nil, err
	}
	ids := live.Select(events, time.Now())
	if len(ids) == 0 {
		return nil, ErrNothingLive
	}
	return ids, nil
}

func main() {
	if err := newWatchCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
