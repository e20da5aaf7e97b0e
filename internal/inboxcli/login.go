package inboxcli

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/opsdeskhq/opsdesk/internal/session"
)

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login [email]",
		Short: "Authenticate against the dashboard and save the session",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLogin,
	}
	cmd.Flags().String("password", "", "Password (prompted when omitted)")
	return cmd
}

func runLogin(cmd *cobra.Command, args []string) error {
	rt, err := loadRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.close()

	email := ""
	if len(args) > 0 {
		email = strings.TrimSpace(args[0])
	}
	if email == "" {
		fmt.Fprint(cmd.OutOrStdout(), "Email: ")
		reader := bufio.NewReader(cmd.InOrStdin())
		line, err := reader.ReadString('\n')
		if err != nil {
			return Exitf(ExitCodeFailure, "read email: %v", err)
		}
		email = strings.TrimSpace(line)
	}
	if email == "" {
		return Exitf(ExitCodeFailure, "email is required")
	}

	password, _ := cmd.Flags().GetString("password")
	if password == "" {
		fmt.Fprint(cmd.OutOrStdout(), "Password: ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return Exitf(ExitCodeFailure, "read password: %v", err)
		}
		password = string(raw)
	}

	ctx := cmd.Context()
	if _, err := rt.client.Login(ctx, email, password); err != nil {
		return Exitf(ExitCodeAuth, "login failed: %v", err)
	}

	user, err := rt.client.Me(ctx)
	if err != nil {
		return Exitf(ExitCodeFailure, "fetch profile: %v", err)
	}

	sess := &session.Session{
		Token:     rt.client.Token(),
		UserID:    user.ID,
		UserName:  user.FullName,
		BaseURL:   rt.cfg.API.BaseURL,
		CreatedAt: time.Now().UTC(),
	}
	if err := rt.sessions.Save(sess); err != nil {
		return Exitf(ExitCodeFailure, "save session: %v", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", user.FullName, user.Email)
	return nil
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.close()
			if err := rt.sessions.Clear(); err != nil {
				return Exitf(ExitCodeFailure, "clear session: %v", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}
