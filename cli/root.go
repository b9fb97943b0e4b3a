package cli

import (
	"github.com/spf13/cobra"
)

// Execute runs the reloom CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	app := &app{}

	root := &cobra.Command{
		Use:           "reloom",
		Short:         "ReLoom CLI: browse and publish upcycled fashion designs",
		Long:          "reloom talks to the ReLoom API from the terminal: log in, browse the design feed, publish and like designs, comment, and manage your notifications and profile.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return app.init(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return app.close(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&app.configFile, "config", "", "path to config file (default: ./config.yml)")

	root.AddCommand(
		newVersionCmd(),
		newLoginCmd(app),
		newSignupCmd(app),
		newLogoutCmd(app),
		newWhoamiCmd(app),
		newFeedCmd(app),
		newDesignCmd(app),
		newNotificationsCmd(app),
		newProfileCmd(app),
	)

	return root
}
