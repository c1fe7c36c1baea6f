package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/meko-christian/mail-triage/internal/mailclient"
	"github.com/meko-christian/mail-triage/internal/store"
	"github.com/meko-christian/mail-triage/internal/triage"
)

var (
	runDry    bool
	runTrace  bool
	runRule   string
	runAll    bool
	runIngest bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Apply the configured rules to stored messages",
	RunE: func(cmd *cobra.Command, _ []string) error {
		rules, err := triage.Load(rulesPath())
		if err != nil {
			return err
		}

		if runRule != "" {
			selected, ok := selectRule(rules, runRule)
			if !ok {
				fmt.Printf("Unknown rule %q. Available rules:\n", runRule)
				printRules(rules)
				return nil
			}
			rules = []triage.Rule{selected}
		}

		st, err := store.Open(storePath())
		if err != nil {
			return err
		}
		defer st.Close()

		var fx triage.Effector
		var client mailclient.Client
		if runDry {
			fx = &triage.DryRunEffector{}
		} else {
			client, err = mailclient.New(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()

			fx, err = triage.NewCommitEffector(client, st)
			if err != nil {
				return err
			}
		}

		if runIngest {
			if runDry {
				fmt.Println("Skipping ingest: dry run does not touch the store.")
			} else if err := ingestInto(st, client, ingestLimit); err != nil {
				return err
			}
		}

		msgs, err := listForRun(st)
		if err != nil {
			return err
		}
		if len(msgs) == 0 {
			fmt.Println("No messages to process.")
			return nil
		}

		var opts []triage.Option
		if runTrace {
			opts = append(opts, triage.WithTrace(func(msgID string, cond triage.Condition, matched bool) {
				fmt.Printf("  %s: %s %s %q -> %v\n", msgID, cond.Field, cond.Operator, cond.Value, matched)
			}))
		}

		engine := triage.NewEngine(rules, fx, opts...)
		engine.Process(msgs)

		if dry, ok := fx.(*triage.DryRunEffector); ok {
			fmt.Printf("Dry run complete: %d message(s) evaluated, %d planned action(s)\n", len(msgs), len(dry.Planned))
			for _, op := range dry.Planned {
				if op.Target != "" {
					fmt.Printf("  would %s %s -> %s\n", op.Op, op.MessageID, op.Target)
				} else {
					fmt.Printf("  would %s %s\n", op.Op, op.MessageID)
				}
			}
		} else {
			fmt.Printf("Processed %d message(s)\n", len(msgs))
		}
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&runDry, "dry-run", false, "Evaluate rules but perform no provider or store mutations")
	runCmd.Flags().BoolVar(&runTrace, "trace", false, "Print every condition evaluation")
	runCmd.Flags().StringVar(&runRule, "rule", "", "Only run the rule with this description or index")
	runCmd.Flags().BoolVar(&runAll, "all", false, "Re-evaluate already-processed messages too")
	runCmd.Flags().BoolVar(&runIngest, "ingest", false, "Fetch new messages from the provider before running")
	runCmd.Flags().IntVar(&ingestLimit, "limit", 50, "Maximum messages to fetch with --ingest")
	rootCmd.AddCommand(runCmd)
}

func listForRun(st *store.Store) ([]triage.Message, error) {
	if runAll {
		return st.ListAll()
	}
	return st.ListUnprocessed()
}

// selectRule accepts either a zero-based index or a case-insensitive rule
// description.
func selectRule(rules []triage.Rule, filter string) (triage.Rule, bool) {
	if idx, err := strconv.Atoi(filter); err == nil {
		if idx >= 0 && idx < len(rules) {
			return rules[idx], true
		}
		return triage.Rule{}, false
	}
	for _, rule := range rules {
		if strings.EqualFold(rule.Description, filter) {
			return rule, true
		}
	}
	return triage.Rule{}, false
}

func printRules(rules []triage.Rule) {
	for i, rule := range rules {
		fmt.Printf("  %d: %s (%s, %d condition(s), %d action(s))\n",
			i, rule.Description, rule.Predicate, len(rule.Conditions), len(rule.Actions))
	}
}
