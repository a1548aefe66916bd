package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/weightlog/internal/journal"
	"github.com/mesh-intelligence/weightlog/internal/sqlite"
	"github.com/mesh-intelligence/weightlog/pkg/types"
)

const defaultWatchInterval = 2 * time.Second

func newWatchCmd(a *app) *cobra.Command {
	var (
		metricsAddr string
		interval    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll the entries file and print every change until interrupted",
		Long: `Watch re-reads entries.json every --interval and prints a line whenever its
contents change, including changes made by other weightlog processes. The
query index is kept in step. With --metrics-addr the store metrics are
served at /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if interval <= 0 {
				return fmt.Errorf("--interval must be positive, got %s", interval)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			idx, err := sqlite.OpenIndex(a.dataDir, a.log)
			if err != nil {
				return err
			}
			defer idx.Close()

			out := cmd.OutOrStdout()
			if metricsAddr != "" {
				shutdown, err := a.serveMetrics(metricsAddr)
				if err != nil {
					return err
				}
				defer shutdown()
				fmt.Fprintf(out, "Serving metrics on %s\n", metricsAddr)
			}

			report := func(snapshot []types.WeightEntry) { printSnapshot(out, snapshot, a.settings.Unit) }
			feed := pollEntries(ctx, interval, a.readEntries, report, a.log)
			defer feed.Cancel()

			if err := idx.Follow(ctx, feed); err != nil && ctx.Err() == nil {
				return fmt.Errorf("follow index: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "listen address for Prometheus metrics, e.g. :9464")
	cmd.Flags().DurationVar(&interval, "interval", defaultWatchInterval, "how often to re-read the entries file")
	return cmd
}

// readEntries loads entries.json through a journal with empty caches and
// returns its canonical encoding with the decoded entries.
func (a *app) readEntries() ([]byte, []types.WeightEntry, error) {
	j, err := a.openFreshJournal()
	if err != nil {
		return nil, nil, err
	}
	files, err := j.Export()
	if err != nil {
		return nil, nil, err
	}
	entries, err := j.Entries()
	if err != nil {
		return nil, nil, err
	}
	return files[journal.EntriesFile], entries, nil
}

// entryPoller is a Stream of entry snapshots read from disk. A snapshot is
// sent first and then only when the canonical encoding changes.
type entryPoller struct {
	ch   chan []types.WeightEntry
	stop chan struct{}
	once sync.Once
}

func (p *entryPoller) C() <-chan []types.WeightEntry { return p.ch }

func (p *entryPoller) Cancel() { p.once.Do(func() { close(p.stop) }) }

// pollEntries calls read every interval until ctx is done or the poller is
// cancelled, then closes the channel. onChange runs before each snapshot is
// sent. Read failures are logged and retried on the next tick.
func pollEntries(
	ctx context.Context,
	interval time.Duration,
	read func() ([]byte, []types.WeightEntry, error),
	onChange func([]types.WeightEntry),
	log *zap.Logger,
) *entryPoller {
	p := &entryPoller{
		ch:   make(chan []types.WeightEntry),
		stop: make(chan struct{}),
	}
	go func() {
		defer close(p.ch)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var (
			last []byte
			seen bool
		)
		for {
			data, entries, err := read()
			switch {
			case err != nil:
				log.Warn("reading entries failed", zap.Error(err))
			case !seen || !bytes.Equal(data, last):
				last, seen = data, true
				onChange(entries)
				select {
				case p.ch <- entries:
				case <-ctx.Done():
					return
				case <-p.stop:
					return
				}
			}

			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			case <-p.stop:
				return
			}
		}
	}()
	return p
}

func printSnapshot(w io.Writer, snapshot []types.WeightEntry, unit string) {
	if len(snapshot) == 0 {
		fmt.Fprintln(w, "0 entries")
		return
	}
	latest := snapshot[0]
	printer.Fprintf(w, "%d entries, latest %s at %s\n", len(snapshot), weight(latest.WeightKg, unit), stamp(latest.MeasuredAt))
}

// serveMetrics exposes the app registry over HTTP and returns a shutdown
// function.
func (a *app) serveMetrics(addr string) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("metrics server stopped", zap.Error(err))
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
