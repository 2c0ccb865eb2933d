package logsvc

import (
	"io"
	"log"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/qantedservices-cmd/amilou-sub002/core"
	"github.com/qantedservices-cmd/amilou-sub002/core/identity"
	"github.com/qantedservices-cmd/amilou-sub002/core/user"
)

type RollbarLogger struct {
	std   *log.Logger
	debug bool
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	return &RollbarLogger{std: std, debug: conf.Debug}
}

// New returns a RollbarLogger printing to `out` with the standard "<prefix> : " line header.
// Rollbar reporting is disabled in debug mode.
func New(out io.Writer, prefix string, conf *core.Config) *RollbarLogger {
	l := NewRollbarLogger(log.New(out, prefix+" : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	l.Enable(!conf.Debug && conf.RollbarToken != "")
	return l
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// expected fmt: msg | error, map[string]interface{}, identity.Principal | identity.EffectiveIdentity | user.User
func (l RollbarLogger) prepare(msg string, args []interface{}) []interface{} {
	var personSet bool
	setPerson := func(id, uname, email string) {
		if !personSet { // only set one person
			rollbar.SetPerson(id, uname, email)
			personSet = true
		}
	}

	newArgs := make([]interface{}, 0, len(args)+1)
	newArgs = append(newArgs, msg)
	for _, arg := range args {
		switch p := arg.(type) {
		case identity.Principal:
			setPerson(p.ID, p.Username, p.Email)
		case *identity.Principal:
			if p != nil {
				setPerson(p.ID, p.Username, p.Email)
			}
		case identity.EffectiveIdentity:
			setPerson(p.PrincipalID, "", "")
			newArgs = append(newArgs, map[string]interface{}{
				"data_scope_user_id": p.UserID,
				"is_impersonating":   p.IsImpersonating,
			})
		case user.User:
			setPerson(p.ID, p.Username, p.Email)
		default:
			newArgs = append(newArgs, arg)
		}
	}
	if !personSet {
		rollbar.ClearPerson()
	}
	return newArgs
}

func (l RollbarLogger) print(msg string, args []interface{}) {
	_ = l.std.Output(3, msg)
	for _, arg := range args {
		switch arg.(type) {
		case identity.Principal, *identity.Principal, user.User:
			continue
		}
		l.std.Printf("%+v\n", arg)
	}
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	if !l.debug {
		return
	}
	rollbar.Debug(l.prepare(msg, args)...)
	l.print(msg, args)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	rollbar.Info(l.prepare(msg, args)...)
	l.print(msg, args)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	rollbar.Warning(l.prepare(msg, args)...)
	l.print(msg, args)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	rollbar.Error(l.prepare(msg, args)...)
	l.print(msg, args)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	rollbar.Critical(l.prepare(msg, args)...)
	l.print(msg, args)
	rollbar.Wait()
	l.std.Fatal(msg)
}
