package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meko-christian/mail-triage/internal/triage"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List the configured rules in evaluation order",
	RunE: func(_ *cobra.Command, _ []string) error {
		rules, err := triage.Load(rulesPath())
		if err != nil {
			return err
		}
		if len(rules) == 0 {
			fmt.Println("No rules configured.")
			return nil
		}
		printRules(rules)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rulesCmd)
}
