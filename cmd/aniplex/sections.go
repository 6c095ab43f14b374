package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sectionsCmd = &cobra.Command{
	Use:   "sections",
	Short: "List the library sections the provider sees",
	Args:  cobra.NoArgs,
	RunE:  runSections,
}

func init() {
	rootCmd.AddCommand(sectionsCmd)
}

func runSections(cmd *cobra.Command, args []string) error {
	p, _, err := loadProvider()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if err := p.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer func() { _ = p.Close(ctx) }()

	sections, err := p.Sections(ctx)
	if err != nil {
		return err
	}
	for _, sec := range sections {
		fmt.Printf("%-4s %-8s %s\n", sec.Key(), sec.Kind(), sec.Title())
	}
	return nil
}
