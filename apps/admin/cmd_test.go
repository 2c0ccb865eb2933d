package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io/ioutil"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qantedservices-cmd/amilou-sub002/core/group"
	"github.com/qantedservices-cmd/amilou-sub002/core/user"
	inmemdb "github.com/qantedservices-cmd/amilou-sub002/storage/database/inmem"
	"github.com/qantedservices-cmd/amilou-sub002/testutil"
)

func setup(t *testing.T) *commandLine {
	db := inmemdb.NewDB()
	return &commandLine{
		usrRepo: inmemdb.NewUserRepository(db),
		grpRepo: inmemdb.NewGroupRepository(db),
		out:     ioutil.Discard,
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func (tt cliTest) check(t *testing.T, err error) {
	t.Helper()
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, err)
	case tt.wantErrStr != "":
		if assert.Error(t, err) {
			assert.Contains(t, err.Error(), tt.wantErrStr)
		}
	default:
		assert.NoError(t, err)
	}
}

func mockPassword(pwd string) {
	readPasswordFunc = func(int) ([]byte, error) {
		return []byte(pwd), nil
	}
}

func Test_commandLine_root(t *testing.T) {
	cli := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErrStr: `unknown command "lol"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(append([]string{"admin"}, tt.args...)))
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	var gotCommand string
	runMigrationsFunc = func(db *sql.DB, command string, args ...string) error {
		gotCommand = command
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "evaluations", "sql"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotCommand = ""
			tt.check(t, cli.run(append([]string{"admin"}, tt.args...)))
			if len(tt.args) > 1 {
				assert.Equal(t, tt.args[1], gotCommand)
			}
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	tests := []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "--username", "lea"}, wantErr: errHelp},
		{name: "invalid role", args: []string{"adduser", "--username", "lea", "--role", "owner"}, extra: "Str0ng!pass", wantErr: errInvalidRole},
		{name: "weak password", args: []string{"adduser", "--username", "lea"}, extra: "12345678", wantErrStr: "password cannot be entirely numeric"},
		{name: "create", args: []string{"adduser", "--username", "Lea", "--email", "lea@test.com", "--role", "leader"}, extra: "Str0ng!pass"},
		{name: "update", args: []string{"adduser", "--email", "lea@test.com", "--name", "Lea", "--role", "admin"}, extra: "N3w!secret"},
	}
	for _, tt := range tests {
		pwd, _ := tt.extra.(string)
		mockPassword(pwd)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(append([]string{"admin"}, tt.args...)))
		})
	}

	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Username: "lea"})
	require.NoError(t, err)
	assert.Equal(t, "Lea", usr.Name)
	assert.Equal(t, user.RoleAdmin, usr.Role)
	assert.True(t, usr.Active())
	assert.NoError(t, usr.CheckPassword("N3w!secret"))

	users, err := cli.usrRepo.QueryUsers(ctx, &user.QueryFilter{}, nil)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)

	usr := testutil.CreateUser(t, cli.usrRepo, "User", "awe", "awe@test.cd", "mdr", "", true)

	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "--username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "--username", "lol"}, extra: "N3w!secret", wantErr: user.ErrNotFound},
		{name: "weak password", args: []string{"resetpassword", "--username", usr.Username}, extra: "short", wantErrStr: "at least 8 characters"},
		{name: "reset with username", args: []string{"resetpassword", "--username", usr.Username}, extra: "N3w!secret"},
		{name: "reset with email", args: []string{"resetpassword", "--username", usr.Email}, extra: "An0ther#one"},
	}
	for _, tt := range tests {
		pwd, _ := tt.extra.(string)
		mockPassword(pwd)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(append([]string{"admin"}, tt.args...))
			tt.check(t, err)
			if err != nil {
				return
			}
			refreshedUsr, err := cli.usrRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
			require.NoError(t, err)
			assert.False(t, bytes.Equal(refreshedUsr.PasswordHash, usr.PasswordHash), "failed to update new password")
			assert.NoError(t, refreshedUsr.CheckPassword(pwd))
		})
	}
}

func Test_commandLine_groups(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	lea := testutil.CreateUser(t, cli.usrRepo, "Lea", "lea", "", "", user.RoleLeader, true)
	grp := testutil.CreateGroup(t, cli.grpRepo, "Existing", nil)

	tests := []cliTest{
		{name: "addgroup: no name", args: []string{"addgroup", "--name", "  "}, wantErr: errHelp},
		{name: "addgroup", args: []string{"addgroup", "--name", "Evening halaqa"}},
		{name: "addmember: no args", args: []string{"addmember"}, wantErr: errHelp},
		{name: "addmember: unknown group", args: []string{"addmember", "--group", "nope", "--username", "lea"}, wantErr: group.ErrNotFound},
		{name: "addmember: unknown user", args: []string{"addmember", "--group", grp.ID, "--username", "nope"}, wantErr: user.ErrNotFound},
		{name: "addmember: invalid role", args: []string{"addmember", "--group", grp.ID, "--username", "lea", "--role", "admin"}, wantErr: errInvalidMemberRole},
		{name: "addmember", args: []string{"addmember", "--group", grp.ID, "--username", "lea"}},
		{name: "addmember: promote", args: []string{"addmember", "--group", grp.ID, "--username", "lea", "--role", "leader"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(append([]string{"admin"}, tt.args...)))
		})
	}

	groups, err := cli.grpRepo.QueryGroups(ctx, &group.QueryFilter{Search: "evening"})
	require.NoError(t, err)
	assert.Len(t, groups, 1)

	mbrs, err := cli.grpRepo.ListMembers(ctx, grp.ID)
	require.NoError(t, err)
	require.Len(t, mbrs, 1)
	assert.Equal(t, lea.ID, mbrs[0].UserID)
	assert.Equal(t, group.RoleLeader, mbrs[0].Role)
}
