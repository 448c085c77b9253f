package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ecoroute/ecoroute-go/internal/api"
	"github.com/ecoroute/ecoroute-go/internal/session"
)

func newLoginCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate with the EcoRoute backend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			if email == "" {
				email, err = promptLine("Email: ")
				if err != nil {
					return err
				}
			}

			if password == "" {
				password, err = promptLine("Password: ")
				if err != nil {
					return err
				}
			}

			if err := app.Session.Login(cmd.Context(), email, password); err != nil {
				if errors.Is(err, api.ErrInvalidCredentials) {
					return fmt.Errorf("invalid email or password")
				}

				return err
			}

			sess := app.Session.Current()
			statusf("Logged in as %s (%s)\n", sess.Email, sess.Role)

			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted if omitted)")

	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the refresh token and clear the local session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			app.Session.Logout(cmd.Context())
			statusf("Logged out\n")

			return nil
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the authenticated identity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			sess := app.Session.Current()
			if sess == nil {
				return fmt.Errorf("not logged in (state: %s)", app.Session.State())
			}

			if flagJSON {
				return printJSON(map[string]string{
					"userId": sess.UserID,
					"name":   sess.Name,
					"email":  sess.Email,
					"role":   string(sess.Role),
				})
			}

			fmt.Printf("%s <%s>\nrole: %s\n", sess.Name, sess.Email, sess.Role)
			if sess.DriverID != "" {
				fmt.Printf("driver: %s\n", sess.DriverID)
			}

			return nil
		},
	}
}

// requireAuth fails fast with a login hint when no session exists.
func requireAuth(m *session.Manager) error {
	if m.State() != session.StateAuthenticated {
		return fmt.Errorf("not logged in — run 'ecoroute login' first")
	}

	return nil
}

// promptLine reads one line from stdin after printing a prompt.
func promptLine(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)

	reader := bufio.NewReader(os.Stdin)

	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading input: %w", err)
	}

	return strings.TrimSpace(line), nil
}
