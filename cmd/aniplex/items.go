package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/anibridge/plex-provider/pkg/library"
)

var (
	itemsSince   string
	itemsWatched bool
	itemsKeys    []string
)

var itemsCmd = &cobra.Command{
	Use:   "items <section-title>",
	Short: "List a section's items",
	Long: `List the items of one library section, optionally filtered the way a
sync cycle would filter them.

Examples:
  aniplex items Anime
  aniplex items Anime --watched
  aniplex items Movies --since 2024-01-01`,
	Args: cobra.ExactArgs(1),
	RunE: runItems,
}

func init() {
	rootCmd.AddCommand(itemsCmd)
	itemsCmd.Flags().StringVar(&itemsSince, "since", "", "Only items modified on or after this date (YYYY-MM-DD)")
	itemsCmd.Flags().BoolVar(&itemsWatched, "watched", false, "Only items watched at least once")
	itemsCmd.Flags().StringSliceVar(&itemsKeys, "keys", nil, "Only these item keys")
}

func runItems(cmd *cobra.Command, args []string) error {
	p, _, err := loadProvider()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if err := p.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer func() { _ = p.Close(ctx) }()

	opts := library.ListOptions{RequireWatched: itemsWatched, Keys: itemsKeys}
	if itemsSince != "" {
		since, err := time.Parse("2006-01-02", itemsSince)
		if err != nil {
			return fmt.Errorf("invalid --since date: %s", itemsSince)
		}
		opts.MinLastModified = since
	}

	sections, err := p.Sections(ctx)
	if err != nil {
		return err
	}
	var target library.Section
	for _, sec := range sections {
		if strings.EqualFold(sec.Title(), args[0]) {
			target = sec
			break
		}
	}
	if target == nil {
		return fmt.Errorf("no section titled %q", args[0])
	}

	items, err := p.ListItems(ctx, target, opts)
	if err != nil {
		return err
	}
	for _, item := range items {
		fmt.Printf("%-8s %-8s %s\n", item.Key(), item.Kind(), item.Title())
	}
	return nil
}
