package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newSitemapsCmd creates the 'sitemaps' subcommand, which prints the sitemap
// URLs a run would harvest.
func newSitemapsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sitemaps",
		Short: "Print the sitemap URLs a run would harvest",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			refs, err := appInstance.SitemapRefs()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, ref := range refs {
				if _, err := fmt.Fprintln(out, ref.URL); err != nil {
					return fmt.Errorf("write sitemap list: %w", err)
				}
			}
			return nil
		},
	}
}
