package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Resolve and print the configured Plex identity",
	Long: `Connect to the configured Plex server, resolve the configured user,
and print the identity the provider would operate as.

Examples:
  aniplex check
  aniplex --config /etc/anibridge/plex.toml check`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	p, _, err := loadProvider()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if err := p.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer func() { _ = p.Close(ctx) }()

	user, _ := p.User()
	sections, err := p.Sections(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("user:     %s (id %s)\n", user.Title, user.Key)
	fmt.Printf("sections: %d\n", len(sections))
	return nil
}
