package service

import (
	"testing"
	"time"

	"github.com/RibkiAnas/resumaker/database"
	"github.com/RibkiAnas/resumaker/database/model"

	"github.com/stretchr/testify/assert"
)

func TestPrepareAndValidateCode(t *testing.T) {
	setup()
	defer teardown()

	service := VerificationService{}

	code, err := service.PrepareVerification(VerificationOnboarding, "kody@example.com", DefaultCodePeriod)
	assert.NoError(t, err)
	assert.Len(t, code, 6)

	// Wrong code, wrong type and wrong target all fail the same way
	valid, err := service.IsCodeValid(VerificationOnboarding, "kody@example.com", "000000")
	assert.NoError(t, err)
	assert.False(t, valid)

	valid, err = service.IsCodeValid(VerificationResetPassword, "kody@example.com", code)
	assert.NoError(t, err)
	assert.False(t, valid)

	valid, err = service.IsCodeValid(VerificationOnboarding, "other@example.com", code)
	assert.NoError(t, err)
	assert.False(t, valid)

	valid, err = service.IsCodeValid(VerificationOnboarding, "kody@example.com", code)
	assert.NoError(t, err)
	assert.True(t, valid)
}

func TestValidateCodeConsumesChallenge(t *testing.T) {
	setup()
	defer teardown()

	service := VerificationService{}

	code, err := service.PrepareVerification(VerificationOnboarding, "kody@example.com", DefaultCodePeriod)
	assert.NoError(t, err)

	valid, err := service.ValidateCode(VerificationOnboarding, "kody@example.com", code)
	assert.NoError(t, err)
	assert.True(t, valid)

	// Codes are single use
	valid, err = service.ValidateCode(VerificationOnboarding, "kody@example.com", code)
	assert.NoError(t, err)
	assert.False(t, valid)
}

func TestReprepareInvalidatesOldCode(t *testing.T) {
	setup()
	defer teardown()

	service := VerificationService{}

	oldCode, err := service.PrepareVerification(VerificationOnboarding, "kody@example.com", DefaultCodePeriod)
	assert.NoError(t, err)

	newCode, err := service.PrepareVerification(VerificationOnboarding, "kody@example.com", DefaultCodePeriod)
	assert.NoError(t, err)
	assert.NotEqual(t, oldCode, newCode)

	valid, err := service.IsCodeValid(VerificationOnboarding, "kody@example.com", oldCode)
	assert.NoError(t, err)
	assert.False(t, valid)

	valid, err = service.IsCodeValid(VerificationOnboarding, "kody@example.com", newCode)
	assert.NoError(t, err)
	assert.True(t, valid)

	// Only one row per (target, type)
	var count int64
	database.GetDB().Model(model.Verification{}).
		Where("type = ? AND target = ?", VerificationOnboarding, "kody@example.com").
		Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestExpiredChallengeIsRejected(t *testing.T) {
	setup()
	defer teardown()

	service := VerificationService{}

	code, err := service.PrepareVerification(VerificationResetPassword, "kody", DefaultCodePeriod)
	assert.NoError(t, err)

	// Push the expiry into the past
	expired := time.Now().Add(-time.Minute)
	assert.NoError(t, database.GetDB().Model(model.Verification{}).
		Where("type = ? AND target = ?", VerificationResetPassword, "kody").
		Update("expires_at", expired).Error)

	valid, err := service.IsCodeValid(VerificationResetPassword, "kody", code)
	assert.NoError(t, err)
	assert.False(t, valid)
}

func TestTwoFASetupAndConfirm(t *testing.T) {
	setup()
	defer teardown()

	service := VerificationService{}
	userID := "user-1"

	assert.False(t, service.TwoFAEnabled(userID))

	uri, png, err := service.PrepareTwoFASetup(userID)
	assert.NoError(t, err)
	assert.Contains(t, uri, "otpauth://totp/")
	assert.Contains(t, uri, "resumaker")
	assert.NotEmpty(t, png)

	// A pending setup is not an enrollment yet
	assert.False(t, service.TwoFAEnabled(userID))

	// Compute the current code from the stored secret
	pending, err := service.getVerification(VerificationTwoFASetup, userID)
	assert.NoError(t, err)
	code := totpFor(pending).Now()

	ok, err := service.ConfirmTwoFASetup(userID, "000000")
	assert.NoError(t, err)
	assert.False(t, ok)

	ok, err = service.ConfirmTwoFASetup(userID, code)
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, service.TwoFAEnabled(userID))

	// The confirmed enrollment keeps the secret and has no expiry
	confirmed, err := service.getVerification(VerificationTwoFA, userID)
	assert.NoError(t, err)
	assert.Equal(t, pending.Secret, confirmed.Secret)
	assert.Nil(t, confirmed.ExpiresAt)

	// 2fa codes are reusable, the row must survive validation
	loginCode := totpFor(confirmed).Now()
	valid, err := service.ValidateCode(VerificationTwoFA, userID, loginCode)
	assert.NoError(t, err)
	assert.True(t, valid)
	assert.True(t, service.TwoFAEnabled(userID))

	assert.NoError(t, service.DisableTwoFA(userID))
	assert.False(t, service.TwoFAEnabled(userID))
}

func TestDeleteExpiredVerifications(t *testing.T) {
	setup()
	defer teardown()

	service := VerificationService{}
	userID := "user-1"

	// One expired email challenge, one live, one confirmed enrollment
	_, err := service.PrepareVerification(VerificationOnboarding, "old@example.com", DefaultCodePeriod)
	assert.NoError(t, err)
	expired := time.Now().Add(-time.Minute)
	assert.NoError(t, database.GetDB().Model(model.Verification{}).
		Where("target = ?", "old@example.com").
		Update("expires_at", expired).Error)

	_, err = service.PrepareVerification(VerificationOnboarding, "new@example.com", DefaultCodePeriod)
	assert.NoError(t, err)

	_, _, err = service.PrepareTwoFASetup(userID)
	assert.NoError(t, err)
	pending, err := service.getVerification(VerificationTwoFASetup, userID)
	assert.NoError(t, err)
	_, err = service.ConfirmTwoFASetup(userID, totpFor(pending).Now())
	assert.NoError(t, err)

	count, err := service.DeleteExpiredVerifications()
	assert.NoError(t, err)
	assert.EqualValues(t, 1, count)

	// The enrollment with its null expiry is untouched
	assert.True(t, service.TwoFAEnabled(userID))
}
