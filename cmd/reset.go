package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/meko-christian/mail-triage/internal/store"
)

var (
	resetAll       bool
	resetID        string
	resetOlderThan int
	resetYes       bool
)

var resetCmd = &cobra.Command{
	Use:   "reset-processed",
	Short: "Clear processed flags so messages are evaluated again",
	RunE: func(_ *cobra.Command, _ []string) error {
		st, err := store.Open(storePath())
		if err != nil {
			return err
		}
		defer st.Close()

		switch {
		case resetAll:
			if !resetYes && !confirm("Reset 'processed' for ALL messages? This cannot be undone. (y/N): ") {
				fmt.Println("Canceled")
				return nil
			}
			if err := st.ResetAllProcessed(); err != nil {
				return err
			}
			fmt.Println("All messages marked unprocessed.")
		case resetID != "":
			if err := st.ResetProcessed(resetID); err != nil {
				return err
			}
			fmt.Printf("Message %s marked unprocessed.\n", resetID)
		case resetOlderThan > 0:
			if err := st.ResetProcessedOlderThan(resetOlderThan); err != nil {
				return err
			}
			fmt.Printf("Messages older than %d days marked unprocessed.\n", resetOlderThan)
		default:
			fmt.Println("No action specified. Use --all, --id, or --older-than")
		}
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetAll, "all", false, "Reset processed for all messages")
	resetCmd.Flags().StringVar(&resetID, "id", "", "Reset processed for a specific message id")
	resetCmd.Flags().IntVar(&resetOlderThan, "older-than", 0, "Reset processed for messages older than DAYS")
	resetCmd.Flags().BoolVar(&resetYes, "yes", false, "Skip the confirmation prompt")
	rootCmd.AddCommand(resetCmd)
}

func confirm(label string) bool {
	fmt.Print(label)
	text, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	return strings.EqualFold(strings.TrimSpace(text), "y")
}
