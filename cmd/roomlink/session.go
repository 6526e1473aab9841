package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"roomlink/internal/core/domain"

	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login <username>",
	Short: "Sign in and store the session",
	Long: `Sign in with a username and password. The password is read from
--password, ROOMLINK_PASSWORD or the first line of standard input.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, _ := cmd.Flags().GetString("password")
		if password == "" {
			password = os.Getenv("ROOMLINK_PASSWORD")
		}
		if password == "" {
			fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("failed to read password: %w", err)
			}
			password = strings.TrimRight(line, "\r\n")
		}

		sess, err := a.sessions.Login(cmd.Context(), domain.Credentials{
			Username: args[0],
			Password: password,
		})
		if err != nil {
			return err
		}
		a.analytics.TrackVisit(cmd.Context(), "/login", "cli")

		fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%s)\n", sess.User.DisplayName, sess.User.Role)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := a.sessions.Logout(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess := a.sessions.Current()
		if sess == nil {
			return domain.NewAuthError(domain.AuthNoSession, nil)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s (id %s, %s)\n", sess.User.DisplayName, sess.User.ID, sess.User.Role)
		if !sess.ExpiresAt.IsZero() {
			fmt.Fprintf(out, "session expires %s\n", sess.ExpiresAt.Local().Format("2006-01-02 15:04"))
		}
		return nil
	},
}

func init() {
	loginCmd.Flags().String("password", "", "password (prefer ROOMLINK_PASSWORD or stdin)")
}

// describe turns client errors into one line for the terminal.
func describe(err error) string {
	var (
		authErr  *domain.AuthError
		valErr   *domain.ValidationError
		netErr   *domain.NetworkError
		mediaErr *domain.MediaError
	)
	switch {
	case errors.As(err, &authErr) && authErr.Reason == domain.AuthNoSession:
		return "not signed in, run `roomlink login <username>`"
	case errors.As(err, &authErr):
		return "authentication failed: " + err.Error()
	case errors.As(err, &valErr):
		return "invalid " + valErr.Field + ": " + valErr.Reason
	case errors.Is(err, domain.ErrAdminRequired):
		return "this command needs an administrator account"
	case errors.As(err, &netErr):
		return "server unreachable: " + err.Error()
	case errors.As(err, &mediaErr):
		return "media unavailable: " + err.Error()
	}
	return err.Error()
}
