// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"context"
	"io/ioutil"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/qantedservices-cmd/amilou-sub002/core"
	"github.com/qantedservices-cmd/amilou-sub002/core/group"
	"github.com/qantedservices-cmd/amilou-sub002/core/tracking"
	"github.com/qantedservices-cmd/amilou-sub002/core/user"
	logsvc "github.com/qantedservices-cmd/amilou-sub002/services/logger"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd, role string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	if role == "" {
		role = user.RoleMember
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Role:      role,
		IsActive:  &isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// CreateGroup creates a group led by `leaders` with `members` as plain members.
func CreateGroup(t *testing.T, repo group.Repository, name string, leaders []user.User, members ...user.User) group.Group {
	ctx := context.Background()
	grp, err := repo.CreateGroup(ctx, group.Group{Name: name, CreatedAt: time.Now().UTC()})
	if err != nil {
		t.Fatalf("CreateGroup() failed: %v", err)
	}
	add := func(usr user.User, role string) {
		mbr := group.Member{GroupID: grp.ID, UserID: usr.ID, Role: role, JoinedAt: time.Now().UTC()}
		if _, err := repo.UpsertMember(ctx, mbr); err != nil {
			t.Fatalf("CreateGroup() failed: %v", err)
		}
	}
	for _, l := range leaders {
		add(l, group.RoleLeader)
	}
	for _, m := range members {
		add(m, group.RoleMember)
	}
	return grp
}

// NewValidator returns a validator with every app validator & translation registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	group.InitValidators(validate, translator)
	tracking.InitValidators(validate, translator)
	return validate, translator
}

// NewConfig returns the configuration used by tests.
func NewConfig() *core.Config {
	return &core.Config{
		Env:       "TEST",
		TestMode:  true,
		AppName:   "Amilou",
		SecretKey: "test-secret",
		Server: core.ServerConfig{
			ShutdownTimeout:           time.Second,
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 24 * time.Hour,
		},
		Impersonation: core.ImpersonationConfig{MaxSessions: 100},
		Blob:          core.BlobConfig{TTL: 5 * time.Minute},
	}
}

// NewLogger returns a core.Logger discarding everything.
func NewLogger() core.Logger {
	return logsvc.New(ioutil.Discard, "TEST", NewConfig())
}
