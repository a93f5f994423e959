package logging

import (
	"fmt"
	"sync"

	"github.com/rollbar/rollbar-go"

	"github.com/nhle/lms-client/internal/model"
)

// RollbarLogger forwards warnings and errors to Rollbar and mirrors every
// line to a local Logger.
type RollbarLogger struct {
	local Logger
	mu    sync.Mutex
}

var _ Logger = (*RollbarLogger)(nil)

// NewRollbar configures the global Rollbar client from cfg. It returns
// local unchanged when no Rollbar token is configured.
func NewRollbar(local Logger, cfg model.LoggingConfig, version string) Logger {
	if cfg.RollbarToken == "" {
		return local
	}

	rollbar.SetToken(cfg.RollbarToken)
	rollbar.SetEnvironment(cfg.Environment)
	rollbar.SetCodeVersion(version)
	rollbar.SetEnabled(true)

	return &RollbarLogger{local: local}
}

// SetPerson tags subsequent reports with the signed-in user. A nil user
// clears the tag.
func (l *RollbarLogger) SetPerson(u *model.User) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if u == nil {
		rollbar.ClearPerson()
		return
	}
	rollbar.SetPerson(u.ID, u.DisplayName(), u.Email)
}

func (l *RollbarLogger) Debug(format string, args ...interface{}) {
	l.local.Debug(format, args...)
}

func (l *RollbarLogger) Info(format string, args ...interface{}) {
	l.local.Info(format, args...)
}

func (l *RollbarLogger) Warn(format string, args ...interface{}) {
	rollbar.Warning(fmt.Sprintf(format, args...))
	l.local.Warn(format, args...)
}

func (l *RollbarLogger) Error(format string, args ...interface{}) {
	rollbar.Error(fmt.Errorf(format, args...))
	l.local.Error(format, args...)
}

// Close flushes pending reports.
func (l *RollbarLogger) Close() {
	rollbar.Wait()
}

// PersonSetter is implemented by loggers that can attribute reports to a user.
type PersonSetter interface {
	SetPerson(u *model.User)
}
