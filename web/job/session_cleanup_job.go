// Package job contains the periodic tasks scheduled by the web server.
package job

import (
	"github.com/RibkiAnas/resumaker/logger"
	"github.com/RibkiAnas/resumaker/web/service"
)

// SessionCleanupJob deletes login sessions past their expiration date.
type SessionCleanupJob struct {
	sessionService service.SessionService
}

func NewSessionCleanupJob() *SessionCleanupJob {
	return new(SessionCleanupJob)
}

// Here Run is an interface method of the Job interface
func (j *SessionCleanupJob) Run() {
	count, err := j.sessionService.DeleteExpiredSessions()
	if err != nil {
		logger.Warning("session cleanup job err:", err)
		return
	}
	if count > 0 {
		logger.Debugf("session cleanup removed %d expired sessions", count)
	}
}
