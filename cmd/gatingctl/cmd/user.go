package cmd

import (
	"course_gating_backend/internal/model"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newUserCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}

	create := &cobra.Command{
		Use:   "create <email>",
		Short: "Create an account; staff roles can only be granted here",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, _ := cmd.Flags().GetString("role")
			switch model.UserRole(role) {
			case model.Student, model.Teacher, model.Admin:
			default:
				return fmt.Errorf("unknown role %q", role)
			}
			password, _ := cmd.Flags().GetString("password")
			if len(password) < 8 {
				return fmt.Errorf("password must be at least 8 characters")
			}
			name, _ := cmd.Flags().GetString("name")
			if name == "" {
				name, _, _ = strings.Cut(args[0], "@")
			}

			core, err := openCore(cmd)
			if err != nil {
				return err
			}
			defer core.Close()

			user := &model.User{
				Name:     name,
				Email:    args[0],
				Password: password,
				Role:     model.UserRole(role),
			}
			if err := core.Auth.Register(cmd.Context(), user); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %d (%s)\n", user.ID, user.Role)
			return nil
		},
	}
	create.Flags().String("role", string(model.Teacher), "student, teacher or admin")
	create.Flags().String("password", "", "Initial password (at least 8 characters)")
	create.Flags().String("name", "", "Display name, defaults to the email local part")
	c.AddCommand(create)
	return c
}
