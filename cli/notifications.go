package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newNotificationsCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "notifications",
		Aliases: []string{"notif"},
		Short:   "Manage your notification tray",
	}

	cmd.AddCommand(
		newNotificationsListCmd(app),
		newNotificationsReadCmd(app),
		newNotificationsReadAllCmd(app),
	)

	return cmd
}

func newNotificationsListCmd(app *app) *cobra.Command {
	var (
		pages  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notifications, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.requireLogin(); err != nil {
				return err
			}
			unread, err := app.notifications.UnreadCount(cmd.Context())
			if err != nil {
				return err
			}
			tray := app.notifications.Feed()
			for i := 0; i < pages; i++ {
				if _, err := tray.LoadNext(cmd.Context()); err != nil {
					return err
				}
				if !tray.HasMore() {
					break
				}
			}

			items := tray.Items()
			if asJSON {
				return writeJSON(cmd, items)
			}
			for _, n := range items {
				marker := " "
				if !n.IsRead {
					marker = "●"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s  [%s] %s", marker, n.ID, n.Type, n.Title)
				if n.Message != "" {
					fmt.Fprintf(cmd.OutOrStdout(), " — %s", n.Message)
				}
				fmt.Fprintln(cmd.OutOrStdout())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d unread\n", unread)
			return nil
		},
	}

	cmd.Flags().IntVar(&pages, "pages", 1, "number of pages to load")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw JSON")

	return cmd
}

func newNotificationsReadCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "read <notification-id>",
		Short: "Mark a notification as read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireLogin(); err != nil {
				return err
			}
			// The optimistic patch needs the tray and counter loaded.
			if _, err := app.notifications.UnreadCount(cmd.Context()); err != nil {
				return err
			}
			if _, err := app.notifications.Feed().LoadNext(cmd.Context()); err != nil {
				return err
			}
			if err := app.notifications.MarkRead(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Marked as read.")
			return nil
		},
	}
}

func newNotificationsReadAllCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "read-all",
		Short: "Mark all notifications as read",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.requireLogin(); err != nil {
				return err
			}
			if _, err := app.notifications.UnreadCount(cmd.Context()); err != nil {
				return err
			}
			if err := app.notifications.MarkAllRead(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "All notifications marked as read.")
			return nil
		},
	}
}
