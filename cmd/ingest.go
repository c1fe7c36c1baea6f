package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/meko-christian/mail-triage/internal/mailclient"
	"github.com/meko-christian/mail-triage/internal/store"
)

var ingestLimit int

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch recent messages from the provider into the local store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := store.Open(storePath())
		if err != nil {
			return err
		}
		defer st.Close()

		client, err := mailclient.New(cmd.Context())
		if err != nil {
			return err
		}
		defer client.Close()

		return ingestInto(st, client, ingestLimit)
	},
}

func init() {
	ingestCmd.Flags().IntVar(&ingestLimit, "limit", 50, "Maximum number of messages to fetch")
	rootCmd.AddCommand(ingestCmd)
}

// ingestInto fetches up to limit messages, skipping ids already stored, and
// saves the rest. A save failure skips that one message.
func ingestInto(st *store.Store, client mailclient.Client, limit int) error {
	ids, err := st.ListAllIDs()
	if err != nil {
		return err
	}
	excluding := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		excluding[id] = struct{}{}
	}

	msgs, err := client.Fetch(limit, excluding)
	if err != nil {
		return err
	}

	saved := 0
	for _, msg := range msgs {
		if err := st.Save(msg); err != nil {
			slog.Error("failed to save message", "id", msg.ID, "error", err)
			continue
		}
		saved++
	}
	fmt.Printf("Ingested %d new message(s)\n", saved)
	return nil
}
