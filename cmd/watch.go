package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/meko-christian/mail-triage/internal/mailclient"
	"github.com/meko-christian/mail-triage/internal/store"
	"github.com/meko-christian/mail-triage/internal/triage"
)

var watchLimit int

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Continuously ingest new mail and apply the rules",
	RunE: func(cmd *cobra.Command, _ []string) error {
		rules, err := triage.Load(rulesPath())
		if err != nil {
			return err
		}

		st, err := store.Open(storePath())
		if err != nil {
			return err
		}
		defer st.Close()

		slog.Info("Starting watch mode")
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return watch(ctx, st, rules)
	},
}

func init() {
	watchCmd.Flags().IntVar(&watchLimit, "limit", 50, "Maximum messages to fetch per cycle")
	rootCmd.AddCommand(watchCmd)
}

// watch runs triage cycles until ctx is cancelled. The IMAP backend blocks
// on IDLE between cycles; other backends poll on watch.interval. Connection
// failures reconnect with a capped backoff.
func watch(ctx context.Context, st *store.Store, rules []triage.Rule) error {
	connectionAttempt := 0

	for {
		select {
		case <-ctx.Done():
			slog.Info("Watch cancelled")
			return nil
		default:
		}

		connectionAttempt++
		slog.Info("Connecting to mail provider", "attempt", connectionAttempt)

		client, err := mailclient.New(ctx)
		if err != nil {
			slog.Error("Failed to connect", "error", err, "attempt", connectionAttempt)
			if !sleepBackoff(ctx, connectionAttempt) {
				return nil
			}
			continue
		}

		// Reset connection attempt counter on successful connection
		connectionAttempt = 0

		cycle := func() {
			if err := triageCycle(st, client, rules); err != nil {
				slog.Error("Triage cycle failed", "error", err)
			}
		}
		cycle()

		imapClient, ok := client.(*mailclient.IMAPClient)
		if !ok {
			pollLoop(ctx, cycle)
			_ = client.Close()
			return nil
		}

		err = imapClient.Idle(ctx, cycle)
		_ = client.Close()
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			slog.Error("IDLE connection lost", "error", err)
		}
	}
}

// triageCycle is one ingest-then-evaluate pass in committing mode.
func triageCycle(st *store.Store, client mailclient.Client, rules []triage.Rule) error {
	if err := ingestInto(st, client, watchLimit); err != nil {
		return err
	}

	fx, err := triage.NewCommitEffector(client, st)
	if err != nil {
		return err
	}

	msgs, err := st.ListUnprocessed()
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		slog.Info("No unprocessed messages")
		return nil
	}

	triage.NewEngine(rules, fx).Process(msgs)
	return nil
}

func pollLoop(ctx context.Context, cycle func()) {
	interval := viper.GetDuration("watch.interval")
	if interval <= 0 {
		interval = 2 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Watch cancelled")
			return
		case <-ticker.C:
			cycle()
		}
	}
}

// sleepBackoff waits before the next connection attempt, capped at five
// minutes. Returns false when ctx is cancelled while waiting.
func sleepBackoff(ctx context.Context, attempt int) bool {
	if attempt > 6 {
		attempt = 6
	}
	delay := time.Duration(attempt) * 10 * time.Second
	if delay > 5*time.Minute {
		delay = 5 * time.Minute
	}

	slog.Info("Retrying connection after delay", "delay", delay)
	select {
	case <-ctx.Done():
		return false
	case <-time.After(delay):
		return true
	}
}
