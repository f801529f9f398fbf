package logsvc

import (
	"context"
	"fmt"
	"log"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/auth"
)

type RollbarLogger struct {
	std *log.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetEnabled(conf.RollbarToken != "")
	return &RollbarLogger{std: std}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// Close flushes the pending rollbar items.
func (l RollbarLogger) Close() {
	rollbar.Close()
}

// expected fmt: msg | error, map[string]interface{}, auth.Identity, anything else (sent as extra "args")
func (l RollbarLogger) prepare(msg string, args []interface{}) []interface{} {
	var (
		person *rollbar.Person
		extras map[string]interface{}
		other  []string
	)
	newArgs := make([]interface{}, 0, len(args)+2)
	newArgs = append(newArgs, msg)
	for _, arg := range args {
		switch a := arg.(type) {
		case auth.Identity:
			if person == nil { // only set one Identity
				person = &rollbar.Person{Id: a.ID, Username: a.DisplayName(), Email: a.Email}
			}
		case *auth.Identity:
			if person == nil && a != nil {
				person = &rollbar.Person{Id: a.ID, Username: a.DisplayName(), Email: a.Email}
			}
		case error:
			newArgs = append(newArgs, a)
		case map[string]interface{}:
			extras = a
		default:
			other = append(other, fmt.Sprintf("%+v", a))
		}
	}
	if len(other) > 0 {
		if extras == nil {
			extras = make(map[string]interface{}, 1)
		}
		extras["args"] = other
	}
	if extras != nil {
		newArgs = append(newArgs, extras)
	}
	if person != nil {
		newArgs = append(newArgs, rollbar.NewPersonContext(context.Background(), person))
	}
	return newArgs
}

func (l RollbarLogger) print(level, msg string, args []interface{}) {
	l.std.Printf("%s: %s", level, msg)
	for _, arg := range args {
		switch a := arg.(type) {
		case auth.Identity:
			l.std.Printf("  identity: %s <%s>", a.ID, a.Email)
		case *auth.Identity:
			if a != nil {
				l.std.Printf("  identity: %s <%s>", a.ID, a.Email)
			}
		default:
			l.std.Printf("  %+v", a)
		}
	}
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	rollbar.Debug(l.prepare(msg, args)...)
	l.print("DEBUG", msg, args)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	rollbar.Info(l.prepare(msg, args)...)
	l.print("INFO", msg, args)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	rollbar.Warning(l.prepare(msg, args)...)
	l.print("WARN", msg, args)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	rollbar.Error(l.prepare(msg, args)...)
	l.print("ERROR", msg, args)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	rollbar.Critical(l.prepare(msg, args)...)
	l.print("FATAL", msg, args)
	rollbar.Wait()
	l.std.Fatal(msg)
}
