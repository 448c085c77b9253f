package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show session and configuration status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			state := app.Session.State()

			if flagJSON {
				out := map[string]any{
					"state":     state.String(),
					"apiUrl":    app.Config.API.BaseURL,
					"streamUrl": app.Config.Stream.URL,
					"config":    resolvedCfgPath,
				}

				if sess := app.Session.Current(); sess != nil {
					out["userId"] = sess.UserID
					out["role"] = string(sess.Role)
				}

				return printJSON(out)
			}

			fmt.Printf("session:  %s\n", state)

			if sess := app.Session.Current(); sess != nil {
				fmt.Printf("user:     %s (%s)\n", sess.Email, sess.Role)
			}

			fmt.Printf("api:      %s\n", app.Config.API.BaseURL)
			fmt.Printf("stream:   %s\n", app.Config.Stream.URL)
			fmt.Printf("config:   %s\n", resolvedCfgPath)

			return nil
		},
	}
}
