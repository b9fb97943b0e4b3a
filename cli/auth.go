package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/reloom/reloom-go/auth"
)

func newLoginCmd(app *app) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with email and password",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				var err error
				if password, err = promptSecret(cmd, "Password: "); err != nil {
					return err
				}
			}
			user, err := app.auth.Login(cmd.Context(), auth.LoginInput{
				Email:    email,
				Password: password,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", user.Username, user.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func newSignupCmd(app *app) *cobra.Command {
	var username, email, password string

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				var err error
				if password, err = promptSecret(cmd, "Password: "); err != nil {
					return err
				}
			}
			user, loggedIn, err := app.auth.Signup(cmd.Context(), auth.SignupInput{
				Username: username,
				Email:    email,
				Password: password,
			})
			if err != nil {
				return err
			}
			if loggedIn {
				fmt.Fprintf(cmd.OutOrStdout(), "Welcome to ReLoom, %s. You are now logged in.\n", user.Username)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Account created. Run 'reloom login' to sign in.")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "public username")
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func newLogoutCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out and clear the local session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app.auth.Logout()
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

func newWhoamiCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := app.sessions.Current()
			if !s.Authenticated || s.User == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Not logged in.")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", s.User.Username, s.User.Email)
			if !s.ExpiresAt.IsZero() {
				fmt.Fprintf(cmd.OutOrStdout(), "Session expires %s\n", s.ExpiresAt.Local().Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}

// promptSecret reads a single line from stdin. The CLI stays free of
// terminal-control dependencies, so the input echoes.
func promptSecret(cmd *cobra.Command, prompt string) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), prompt)
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
