package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/qantedservices-cmd/amilou-sub002/core"
	"github.com/qantedservices-cmd/amilou-sub002/core/group"
	"github.com/qantedservices-cmd/amilou-sub002/core/user"
)

var errInvalidMemberRole = errors.New("role must be one of: leader, member")

func (cli *commandLine) addGroupCmd() *cobra.Command {
	var name, desc string

	cmd := &cobra.Command{
		Use:   "addgroup",
		Short: "Create a group",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			name = core.CleanString(name)
			if name == "" {
				_ = cmd.Usage()
				return errHelp
			}
			grp, err := cli.grpRepo.CreateGroup(context.Background(), group.Group{
				Name:        name,
				Description: core.CleanString(desc),
				CreatedAt:   time.Now().UTC(),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "group %s created\n", grp.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "The group's name.")
	cmd.Flags().StringVar(&desc, "description", "", "The group's description.")
	return cmd
}

func (cli *commandLine) addMemberCmd() *cobra.Command {
	var groupID, uname, role string

	cmd := &cobra.Command{
		Use:   "addmember",
		Short: "Add a user to a group, or change their role in it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if groupID == "" || uname == "" {
				_ = cmd.Usage()
				return errHelp
			}
			mbr, err := cli.addMember(groupID, uname, role)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user %s is now %s of group %s\n", mbr.UserID, mbr.Role, mbr.GroupID)
			return nil
		},
	}
	cmd.Flags().StringVar(&groupID, "group", "", "The group's ID.")
	cmd.Flags().StringVar(&uname, "username", "", "The user's username or email.")
	cmd.Flags().StringVar(&role, "role", group.RoleMember, "One of: leader, member.")
	return cmd
}

func (cli *commandLine) addMember(groupID, uname, role string) (group.Member, error) {
	ctx := context.Background()
	role = core.CleanString(role, true /* lower */)
	if role != group.RoleLeader && role != group.RoleMember {
		return group.Member{}, errInvalidMemberRole
	}

	grp, err := cli.grpRepo.GetGroup(ctx, core.CleanString(groupID, true /* lower */))
	if err != nil {
		return group.Member{}, err
	}
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: core.CleanString(uname, true /* lower */)})
	if err != nil {
		return group.Member{}, err
	}
	return cli.grpRepo.UpsertMember(ctx, group.Member{
		GroupID:  grp.ID,
		UserID:   usr.ID,
		Role:     role,
		JoinedAt: time.Now().UTC(),
	})
}
