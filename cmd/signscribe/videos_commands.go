package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"signscribe/internal/catalog"
)

func newVideosCommand(ctx *commandContext) *cobra.Command {
	var query catalog.Query

	cmd := &cobra.Command{
		Use:   "videos",
		Short: "Browse the lesson video catalogue",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			page, err := catalog.New(store, cfg.Catalog.PageSize, ctx.log()).List(cmd.Context(), query)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if page.Total == 0 {
				fmt.Fprintln(out, "No videos found")
				return nil
			}
			rows := make([][]string, 0, len(page.Items))
			for _, v := range page.Items {
				rows = append(rows, []string{v.ID, v.Title, v.Category, v.Level})
			}
			if len(rows) > 0 {
				fmt.Fprintln(out, renderTable([]string{"ID", "Title", "Category", "Level"}, rows))
			}
			fmt.Fprintf(out, "Page %d of %d (%d videos)\n", page.Page, max(page.TotalPages, 1), page.Total)
			return nil
		},
	}
	cmd.Flags().StringVar(&query.Search, "search", "", "Match titles and descriptions")
	cmd.Flags().StringVar(&query.Category, "category", "", "Only show this category")
	cmd.Flags().IntVar(&query.Page, "page", 1, "Page number (1-based)")

	cmd.AddCommand(newVideosSeedCommand(ctx))
	cmd.AddCommand(newVideosCategoriesCommand(ctx))
	return cmd
}

func newVideosSeedCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "seed [file]",
		Short: "Load videos from a YAML file (built-in lessons when omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			source := "built-in lessons"
			reader := catalog.DefaultSeed()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open seed file: %w", err)
				}
				defer f.Close()
				reader = f
				source = args[0]
			}
			n, err := catalog.Seed(cmd.Context(), store, reader)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d videos from %s\n", n, source)
			return nil
		},
	}
}

func newVideosCategoriesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List video categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			categories, err := catalog.New(store, 0, ctx.log()).Categories(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, c := range categories {
				fmt.Fprintln(out, c)
			}
			return nil
		},
	}
}
