package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reloom/reloom-go/version"
)

func newVersionCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if asJSON {
				return writeJSON(cmd, version.Get())
			}
			fmt.Fprintln(cmd.OutOrStdout(), "reloom", version.Full())
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw JSON")
	return cmd
}
