package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reloom/reloom-go/profiles"
)

func newProfileCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show and edit profiles",
	}

	cmd.AddCommand(
		newProfileShowCmd(app),
		newProfileUpdateCmd(app),
		newProfileAvatarCmd(app),
	)

	return cmd
}

func newProfileShowCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show [username]",
		Short: "Show a profile with stats (defaults to your own)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				p   profiles.Profile
				err error
			)
			if len(args) == 1 {
				p, err = app.profiles.GetByUsername(cmd.Context(), args[0])
			} else {
				if err := app.requireLogin(); err != nil {
					return err
				}
				p, err = app.profiles.Get(cmd.Context(), app.sessions.Current().User.ID)
			}
			if err != nil {
				return err
			}
			stats, err := app.profiles.Stats(cmd.Context(), p.ID)
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd, struct {
					profiles.Profile
					Stats profiles.UserStats `json:"stats"`
				}{p, stats})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "@%s", p.Username)
			if p.FullName != "" {
				fmt.Fprintf(out, " (%s)", p.FullName)
			}
			fmt.Fprintln(out)
			if p.Bio != "" {
				fmt.Fprintln(out, p.Bio)
			}
			if p.Website != "" {
				fmt.Fprintln(out, p.Website)
			}
			fmt.Fprintf(out, "\n%d designs, %d likes, %d views\n",
				stats.TotalDesigns, stats.TotalLikes, stats.TotalViews)
			fmt.Fprintf(out, "%d followers, %d following\n",
				stats.FollowersCount, stats.FollowingCount)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw JSON")
	return cmd
}

func newProfileUpdateCmd(app *app) *cobra.Command {
	var in profiles.UpdateInput

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update your profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.requireLogin(); err != nil {
				return err
			}
			p, err := app.profiles.UpdateMe(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Profile updated: @%s\n", p.Username)
			return nil
		},
	}

	cmd.Flags().StringVar(&in.FullName, "name", "", "display name")
	cmd.Flags().StringVar(&in.Bio, "bio", "", "short bio")
	cmd.Flags().StringVar(&in.Website, "website", "", "website URL")

	return cmd
}

func newProfileAvatarCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "avatar",
		Short: "Manage your avatar",
	}

	set := &cobra.Command{
		Use:   "set <file>",
		Short: "Upload a new avatar",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireLogin(); err != nil {
				return err
			}
			img, err := readImage(args[0])
			if err != nil {
				return err
			}
			p, err := app.profiles.UploadAvatar(cmd.Context(), img.FileName, img.ContentType, img.Data)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Avatar updated: %s\n", p.AvatarURL)
			return nil
		},
	}

	remove := &cobra.Command{
		Use:   "remove",
		Short: "Remove your avatar",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.requireLogin(); err != nil {
				return err
			}
			if err := app.profiles.DeleteAvatar(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Avatar removed.")
			return nil
		},
	}

	cmd.AddCommand(set, remove)
	return cmd
}
