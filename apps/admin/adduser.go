package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/qantedservices-cmd/amilou-sub002/core"
	"github.com/qantedservices-cmd/amilou-sub002/core/user"
)

var errInvalidRole = errors.New("role must be one of: admin, leader, member")

func (cli *commandLine) addUserCmd() *cobra.Command {
	var name, uname, email, role string

	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create a user, or update the user with the same username/email. The password is prompted next.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if uname == "" && email == "" {
				_ = cmd.Usage()
				return errHelp
			}
			pwd, err := promptPassword(cmd)
			if err != nil {
				return err
			}
			usr, err := cli.addUser(name, uname, email, role, pwd)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user %s saved\n", usr.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "The user's name.")
	cmd.Flags().StringVar(&uname, "username", "", "The user's username.")
	cmd.Flags().StringVar(&email, "email", "", "The user's email.")
	cmd.Flags().StringVar(&role, "role", user.RoleMember, "One of: admin, leader, member.")
	return cmd
}

// addUser updates or creates an active user.User
func (cli *commandLine) addUser(name, uname, email, role, pwd string) (user.User, error) {
	ctx := context.Background()
	name = core.CleanString(name)
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)
	role = core.CleanString(role, true /* lower */)
	if user.RolePriority(role) == 0 {
		return user.User{}, errInvalidRole
	}
	if err := user.ValidatePassword(pwd, name, uname, email); err != nil {
		return user.User{}, err
	}

	lookup := uname
	if lookup == "" {
		lookup = email
	}
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: lookup})
	isNew := errors.Cause(err) == user.ErrNotFound
	if err != nil && !isNew {
		return user.User{}, err
	}

	now := time.Now().UTC()
	if isNew {
		usr = user.User{Username: uname, Email: email, CreatedAt: now}
	}
	if name != "" {
		usr.Name = name
	}
	if usr.Name == "" {
		usr.Name = lookup
	}
	active := true
	usr.IsActive = &active
	usr.Role = role
	usr.UpdatedAt = now
	if err = usr.SetPassword(pwd); err != nil {
		return user.User{}, err
	}

	if isNew {
		return cli.usrRepo.CreateUser(ctx, usr)
	}
	return cli.usrRepo.UpdateUser(ctx, usr)
}
