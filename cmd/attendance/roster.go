package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"attendance/internal/app"
	"attendance/internal/model"
	"attendance/internal/notify"
)

var rosterCmd = &cobra.Command{
	Use:   "roster",
	Short: "Manage registered users",
}

var rosterImportCmd = &cobra.Command{
	Use:   "import <roster.yaml>",
	Short: "Register or update users from a YAML roster",
	Long: `Import reads a YAML roster and upserts every entry by name.

  users:
    - name: Alice
      email: alice@example.com

Names must match the gallery directory names used for recognition.`,
	Args: cobra.ExactArgs(1),
	RunE: runRosterImport,
}

var rosterListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered users",
	RunE:  runRosterList,
}

func init() {
	rosterCmd.AddCommand(rosterImportCmd, rosterListCmd)
	rootCmd.AddCommand(rosterCmd)
}

type roster struct {
	Users []model.User `yaml:"users"`
}

// parseRoster decodes and checks a roster. Entries without a name or with
// duplicate names are rejected; an invalid email is only reported.
func parseRoster(r io.Reader) ([]model.User, []string, error) {
	var doc roster
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, nil, fmt.Errorf("failed to parse roster: %w", err)
	}

	var warnings []string
	seen := make(map[string]bool, len(doc.Users))
	for i := range doc.Users {
		u := &doc.Users[i]
		u.Name = strings.TrimSpace(u.Name)
		u.Email = strings.TrimSpace(u.Email)

		if u.Name == "" {
			return nil, nil, fmt.Errorf("roster entry %d has no name", i+1)
		}
		if seen[u.Name] {
			return nil, nil, fmt.Errorf("duplicate roster entry %q", u.Name)
		}
		seen[u.Name] = true

		if !notify.ValidEmail(u.Email) {
			warnings = append(warnings, fmt.Sprintf("%s has an invalid or missing email %q, no confirmations will be sent", u.Name, u.Email))
		}
	}
	return doc.Users, warnings, nil
}

func runRosterImport(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	users, warnings, err := parseRoster(f)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		log.Warning("%s", w)
	}

	gw, err := app.OpenGateway(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer gw.Close()

	for i := range users {
		if _, err := gw.Users.Upsert(cmd.Context(), &users[i]); err != nil {
			return fmt.Errorf("failed to import %s: %w", users[i].Name, err)
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d user(s)\n", len(users))
	return nil
}

func runRosterList(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	gw, err := app.OpenGateway(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer gw.Close()

	users, err := gw.Users.List(cmd.Context())
	if err != nil {
		return err
	}
	for _, u := range users {
		fmt.Fprintf(cmd.OutOrStdout(), "%-4d %-24s %s\n", u.ID, u.Name, u.Email)
	}
	return nil
}
