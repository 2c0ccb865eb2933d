package logsvc

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/qantedservices-cmd/amilou-sub002/core"
	"github.com/qantedservices-cmd/amilou-sub002/core/identity"
)

func TestRollbarLogger_prepare(t *testing.T) {
	l := New(new(bytes.Buffer), "TEST", &core.Config{Env: "TEST"})

	err := errors.New("boom")
	extra := map[string]interface{}{"k": "v"}
	p := identity.Principal{ID: "u1", Username: "jo"}

	args := l.prepare("msg", []interface{}{err, extra, p})
	assert.Equal(t, []interface{}{"msg", err, extra}, args)

	ident := identity.EffectiveIdentity{UserID: "u2", PrincipalID: "u1", IsImpersonating: true}
	args = l.prepare("msg", []interface{}{ident})
	assert.Equal(t, []interface{}{
		"msg",
		map[string]interface{}{"data_scope_user_id": "u2", "is_impersonating": true},
	}, args)
}

func TestRollbarLogger_print(t *testing.T) {
	buf := new(bytes.Buffer)
	l := New(buf, "TEST", &core.Config{Env: "TEST"})

	l.Info("hello", identity.Principal{ID: "u1"}, errors.New("boom"))
	out := buf.String()
	assert.Contains(t, out, "TEST : ")
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, "boom")
	assert.NotContains(t, out, "u1")

	buf.Reset()
	l.Debug("hidden")
	assert.Empty(t, buf.String())

	l = New(buf, "TEST", &core.Config{Env: "TEST", Debug: true})
	l.Debug("shown")
	assert.Contains(t, buf.String(), "shown")
}
