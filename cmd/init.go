package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

const starterRules = `rules:
  - description: File job alerts
    predicate: All
    conditions:
      - field: From
        operator: contains
        value: linkedin.com
    actions:
      - type: Move Message
        value: JobAlerts
  - description: Mark old newsletters read
    predicate: All
    conditions:
      - field: Subject
        operator: contains
        value: newsletter
      - field: Received Date/Time
        operator: greater than (days)
        value: "7"
    actions:
      - type: Mark as Read
`

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Interactively generate config.yaml and a starter rules file",
	RunE: func(_ *cobra.Command, _ []string) error {
		configFile := "config.yaml"

		if _, err := os.Stat(configFile); err == nil {
			fmt.Println("config.yaml already exists.")
			return nil
		}

		reader := bufio.NewReader(os.Stdin)

		fmt.Println("Let's set up your config.yaml!")

		backend := prompt(reader, "Mail backend (gmail/imap) [gmail]: ")
		if backend == "" {
			backend = "gmail"
		}

		var backendSection string
		switch backend {
		case "imap":
			fmt.Println("\n--- IMAP ---")
			server := prompt(reader, "IMAP server (e.g. imap.strato.de): ")
			port := prompt(reader, "IMAP port (e.g. 993): ")
			user := prompt(reader, "IMAP username: ")
			pass := prompt(reader, "IMAP password: ")
			backendSection = fmt.Sprintf(`imap:
  server: %s
  port: %s
  username: %s
  password: %s
`, server, port, user, pass)
		default:
			fmt.Println("\n--- Gmail ---")
			creds := prompt(reader, "Path to OAuth credentials file [credentials.json]: ")
			if creds == "" {
				creds = "credentials.json"
			}
			token := prompt(reader, "Path for the cached token [token.json]: ")
			if token == "" {
				token = "token.json"
			}
			backendSection = fmt.Sprintf(`gmail:
  credentials: %s
  token: %s
`, creds, token)
		}

		fmt.Println("\n--- FILES ---")
		dbPath := prompt(reader, "Local store path [mail-triage.db]: ")
		if dbPath == "" {
			dbPath = "mail-triage.db"
		}
		rules := prompt(reader, "Rules file path [rules.yaml]: ")
		if rules == "" {
			rules = "rules.yaml"
		}

		content := fmt.Sprintf(`mail:
  backend: %s

%s
store:
  path: %s

rules:
  path: %s
`, backend, backendSection, dbPath, rules)

		if err := os.WriteFile(configFile, []byte(content), 0o600); err != nil {
			return fmt.Errorf("failed to write config.yaml: %w", err)
		}
		fmt.Println("\nconfig.yaml created successfully.")

		if _, err := os.Stat(rules); os.IsNotExist(err) {
			if err := os.WriteFile(rules, []byte(starterRules), 0o600); err != nil {
				return fmt.Errorf("failed to write %s: %w", rules, err)
			}
			fmt.Printf("Starter rules written to %s — edit them to taste.\n", rules)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func prompt(r *bufio.Reader, label string) string {
	fmt.Print(label)
	text, _ := r.ReadString('\n')
	return strings.TrimSpace(text)
}
