package identity_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qantedservices-cmd/amilou-sub002/core"
	"github.com/qantedservices-cmd/amilou-sub002/core/identity"
	"github.com/qantedservices-cmd/amilou-sub002/core/user"
	logsvc "github.com/qantedservices-cmd/amilou-sub002/services/logger"
)

type usersMap map[string]user.User

func (m usersMap) GetUser(_ context.Context, id string) (user.User, error) {
	if u, ok := m[id]; ok {
		return u, nil
	}
	return user.User{}, user.ErrNotFound
}

func TestService_Start(t *testing.T) {
	ctx := context.Background()
	logs := new(bytes.Buffer)
	store := identity.NewStore(10, time.Hour)
	users := usersMap{
		"u1": {ID: "u1", Name: "User One", Role: user.RoleMember},
		"u2": {ID: "u2", Username: "user2", Role: user.RoleMember},
	}
	svc := identity.NewService(store, users, logsvc.New(logs, "TEST", &core.Config{Env: "TEST"}))

	admin := identity.Principal{ID: "a1", Role: user.RoleAdmin, SessionID: "s1"}
	member := identity.Principal{ID: "u1", Role: user.RoleMember, SessionID: "s2"}

	t.Run("non admin forbidden regardless of target", func(t *testing.T) {
		for _, target := range []string{"u2", "unknown", ""} {
			_, err := svc.Start(ctx, member, target)
			assert.Equal(t, identity.ErrForbidden, errors.Cause(err))
		}
		assert.Equal(t, 0, store.Len())
	})

	t.Run("unknown target", func(t *testing.T) {
		_, err := svc.Start(ctx, admin, "unknown")
		assert.Equal(t, user.ErrNotFound, errors.Cause(err))
		_, ok := svc.Current(admin)
		assert.False(t, ok)
	})

	t.Run("self", func(t *testing.T) {
		_, err := svc.Start(ctx, admin, "a1")
		var vErr *core.ValidationError
		require.True(t, errors.As(err, &vErr))
		assert.Equal(t, identity.ErrSelfImpersonation, vErr.Err)
	})

	t.Run("start, replace & stop", func(t *testing.T) {
		rec, err := svc.Start(ctx, admin, "u1")
		require.NoError(t, err)
		assert.Equal(t, "User One", rec.TargetDisplayName)
		assert.Contains(t, logs.String(), "impersonation started: admin a1 as user u1")

		rec, err = svc.Start(ctx, admin, " U2 ")
		require.NoError(t, err)
		assert.Equal(t, "u2", rec.TargetUserID)
		assert.Equal(t, "user2", rec.TargetDisplayName)

		cur, ok := svc.Current(admin)
		require.True(t, ok)
		assert.Equal(t, "u2", cur.TargetUserID)

		svc.Stop(admin)
		assert.Contains(t, logs.String(), "impersonation stopped: admin a1 as user u2")
		_, ok = svc.Current(admin)
		assert.False(t, ok)

		svc.Stop(admin) // no-op
	})
}
