package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/hangarlinks/hangarlinks/app/repository"
)

var setAdminCmd = &cobra.Command{
	Use:   "set-admin <email>",
	Short: "Grant admin rights to an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setAdmin(cmd.OutOrStdout(), connect(), args[0])
	},
}

func setAdmin(out io.Writer, repos *repository.Repositories, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := repos.User.GetByEmail(email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("no account with email %s", email)
	}
	if err != nil {
		return err
	}
	if user.IsAdmin {
		fmt.Fprintf(out, "%s is already an admin.\n", user.Username)
		return nil
	}
	if err := repos.User.UpdateFields(user.ID, map[string]interface{}{"is_admin": true}); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s (%s) is now an admin.\n", user.Username, email)
	return nil
}
