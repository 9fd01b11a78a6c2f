package job

import (
	"github.com/RibkiAnas/resumaker/logger"
	"github.com/RibkiAnas/resumaker/web/service"
)

// VerificationCleanupJob deletes expired one-time-code challenges.
// Confirmed 2FA enrollments have no expiry and are never touched.
type VerificationCleanupJob struct {
	verificationService service.VerificationService
}

func NewVerificationCleanupJob() *VerificationCleanupJob {
	return new(VerificationCleanupJob)
}

// Here Run is an interface method of the Job interface
func (j *VerificationCleanupJob) Run() {
	count, err := j.verificationService.DeleteExpiredVerifications()
	if err != nil {
		logger.Warning("verification cleanup job err:", err)
		return
	}
	if count > 0 {
		logger.Debugf("verification cleanup removed %d expired challenges", count)
	}
}
