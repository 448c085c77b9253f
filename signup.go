package main

import (
	"github.com/spf13/cobra"

	"github.com/ecoroute/ecoroute-go/internal/api"
)

func newSignupCmd() *cobra.Command {
	var req api.SignupRequest

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Provision a new account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			if req.Password == "" {
				req.Password, err = promptLine("Password: ")
				if err != nil {
					return err
				}
			}

			result, err := app.Auth.Signup(cmd.Context(), req)
			if err != nil {
				return err
			}

			statusf("Account created for %s (%s)\n", result.User.Email, result.User.Role)

			return nil
		},
	}

	cmd.Flags().StringVar(&req.Name, "name", "", "full name")
	cmd.Flags().StringVar(&req.Email, "email", "", "account email")
	cmd.Flags().StringVar(&req.Password, "password", "", "password (prompted if omitted)")
	cmd.Flags().StringVar(&req.Role, "role", "driver", "account role (admin or driver)")
	cmd.Flags().StringVar(&req.TruckID, "truck-id", "", "assigned truck (drivers only)")
	cmd.Flags().StringVar(&req.Phone, "phone", "", "contact phone")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}
