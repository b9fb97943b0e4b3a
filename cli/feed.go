package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reloom/reloom-go/designs"
)

func newFeedCmd(app *app) *cobra.Command {
	var (
		query    string
		category string
		userID   string
		pages    int
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Browse the design feed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			loader := app.designs.NewFeed(designs.FeedQuery{
				Q:        query,
				Category: category,
				UserID:   userID,
			})
			for i := 0; i < pages; i++ {
				if _, err := loader.LoadNext(cmd.Context()); err != nil {
					return err
				}
				if !loader.HasMore() {
					break
				}
			}

			items := loader.Items()
			if asJSON {
				return writeJSON(cmd, items)
			}
			for _, d := range items {
				printDesignLine(cmd, d)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d of %d designs", len(items), loader.Total())
			if loader.HasMore() {
				fmt.Fprint(cmd.OutOrStdout(), " (more available, use --pages)")
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}

	cmd.Flags().StringVarP(&query, "query", "q", "", "search text")
	cmd.Flags().StringVar(&category, "category", "", "filter by category")
	cmd.Flags().StringVar(&userID, "user", "", "filter by author user id")
	cmd.Flags().IntVar(&pages, "pages", 1, "number of pages to load")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw JSON")

	return cmd
}

func printDesignLine(cmd *cobra.Command, d designs.Design) {
	author := "unknown"
	if d.Author != nil {
		author = "@" + d.Author.Username
	}
	line := fmt.Sprintf("%s  %-30s  %s", d.ID, truncate(d.Title, 30), author)
	if d.Stats != nil {
		liked := " "
		if d.Stats.IsLikedByMe {
			liked = "*"
		}
		line += fmt.Sprintf("  %s%d likes  %d comments  %d views",
			liked, d.Stats.Likes, d.Stats.Comments, d.Stats.Views)
	}
	fmt.Fprintln(cmd.OutOrStdout(), line)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
