package service

import (
	"time"

	"github.com/RibkiAnas/resumaker/database"
	"github.com/RibkiAnas/resumaker/database/model"
	"github.com/RibkiAnas/resumaker/logger"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
	"github.com/xlzd/gotp"
	"gorm.io/gorm"
)

// Verification types. Email challenges are single use and expire; a
// confirmed "2fa" row is the user's TOTP enrollment and never expires.
const (
	VerificationOnboarding    = "onboarding"
	VerificationResetPassword = "reset-password"
	VerificationChangeEmail   = "change-email"
	VerificationTwoFASetup    = "2fa-setup"
	VerificationTwoFA         = "2fa"
)

const (
	// DefaultCodePeriod is how long an emailed code stays valid, in seconds.
	DefaultCodePeriod = 10 * 60

	// authenticatorPeriod is the standard TOTP interval for authenticator apps.
	authenticatorPeriod = 30

	codeDigits = 6
)

// VerificationService manages one-time-code challenges and TOTP
// enrollments, keyed by (target, type).
type VerificationService struct{}

func totpFor(v *model.Verification) *gotp.TOTP {
	return gotp.NewTOTP(v.Secret, v.Digits, v.Period, nil)
}

func (s *VerificationService) getVerification(vType, target string) (*model.Verification, error) {
	db := database.GetDB()

	verification := &model.Verification{}
	err := db.Model(model.Verification{}).
		Where("type = ? AND target = ?", vType, target).
		First(verification).
		Error
	if err != nil {
		return nil, err
	}
	return verification, nil
}

// PrepareVerification creates (or replaces) the challenge row for
// (target, type) and returns the code to deliver out of band. period is
// in seconds.
func (s *VerificationService) PrepareVerification(vType, target string, period int) (string, error) {
	verification := &model.Verification{
		ID:        uuid.NewString(),
		Type:      vType,
		Target:    target,
		Secret:    gotp.RandomSecret(32),
		Algorithm: "sha1",
		Digits:    codeDigits,
		Period:    period,
		CharSet:   "0123456789",
	}
	expiresAt := time.Now().Add(time.Duration(period) * time.Second)
	verification.ExpiresAt = &expiresAt

	db := database.GetDB()
	err := db.Transaction(func(tx *gorm.DB) error {
		// Re-requesting a code invalidates the previous one
		if err := tx.Where("type = ? AND target = ?", vType, target).
			Delete(&model.Verification{}).Error; err != nil {
			return err
		}
		return tx.Create(verification).Error
	})
	if err != nil {
		return "", err
	}

	return totpFor(verification).Now(), nil
}

// IsCodeValid checks a submitted code against the stored challenge.
// Unknown targets, expired rows and wrong codes all come back false so
// the caller responds identically to each.
func (s *VerificationService) IsCodeValid(vType, target, code string) (bool, error) {
	verification, err := s.getVerification(vType, target)
	if database.IsNotFound(err) {
		return false, nil
	} else if err != nil {
		return false, err
	}

	if verification.ExpiresAt != nil && verification.ExpiresAt.Before(time.Now()) {
		return false, nil
	}

	totp := totpFor(verification)
	now := time.Now().Unix()
	// Accept the previous interval too so a code typed right at the
	// boundary still lands.
	if totp.Verify(code, now) || totp.Verify(code, now-int64(verification.Period)) {
		return true, nil
	}
	return false, nil
}

// ValidateCode checks a code and, when it is correct, consumes the
// challenge. Confirmed 2fa enrollments are reusable and stay put.
func (s *VerificationService) ValidateCode(vType, target, code string) (bool, error) {
	valid, err := s.IsCodeValid(vType, target, code)
	if err != nil || !valid {
		return false, err
	}

	if vType != VerificationTwoFA {
		if err := s.DeleteVerification(vType, target); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (s *VerificationService) DeleteVerification(vType, target string) error {
	db := database.GetDB()
	return db.Where("type = ? AND target = ?", vType, target).
		Delete(&model.Verification{}).Error
}

// TwoFAEnabled reports whether the user has a confirmed TOTP enrollment.
func (s *VerificationService) TwoFAEnabled(userID string) bool {
	_, err := s.getVerification(VerificationTwoFA, userID)
	if err != nil {
		if !database.IsNotFound(err) {
			logger.Warning("check 2fa enrollment err:", err)
		}
		return false
	}
	return true
}

// PrepareTwoFASetup starts a TOTP enrollment and returns the otpauth URI
// plus a QR code PNG for the authenticator app. The enrollment only
// counts once ConfirmTwoFASetup sees a correct code.
func (s *VerificationService) PrepareTwoFASetup(userID string) (string, []byte, error) {
	verification := &model.Verification{
		ID:        uuid.NewString(),
		Type:      VerificationTwoFASetup,
		Target:    userID,
		Secret:    gotp.RandomSecret(32),
		Algorithm: "sha1",
		Digits:    codeDigits,
		Period:    authenticatorPeriod,
		CharSet:   "0123456789",
	}

	db := database.GetDB()
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("type = ? AND target = ?", VerificationTwoFASetup, userID).
			Delete(&model.Verification{}).Error; err != nil {
			return err
		}
		return tx.Create(verification).Error
	})
	if err != nil {
		return "", nil, err
	}

	uri := totpFor(verification).ProvisioningUri(userID, "resumaker")
	png, err := qrcode.Encode(uri, qrcode.Medium, 256)
	if err != nil {
		return "", nil, err
	}
	return uri, png, nil
}

// ConfirmTwoFASetup promotes a pending enrollment to an active one. The
// row keeps its secret, switches type to "2fa" and loses its expiry.
func (s *VerificationService) ConfirmTwoFASetup(userID, code string) (bool, error) {
	valid, err := s.IsCodeValid(VerificationTwoFASetup, userID, code)
	if err != nil || !valid {
		return false, err
	}

	db := database.GetDB()
	err = db.Transaction(func(tx *gorm.DB) error {
		// A stale enrollment from an earlier setup gets replaced
		if err := tx.Where("type = ? AND target = ?", VerificationTwoFA, userID).
			Delete(&model.Verification{}).Error; err != nil {
			return err
		}
		return tx.Model(model.Verification{}).
			Where("type = ? AND target = ?", VerificationTwoFASetup, userID).
			Updates(map[string]any{"type": VerificationTwoFA, "expires_at": nil}).
			Error
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// DisableTwoFA removes the enrollment and any pending setup.
func (s *VerificationService) DisableTwoFA(userID string) error {
	db := database.GetDB()
	return db.Where("target = ? AND type IN ?", userID,
		[]string{VerificationTwoFA, VerificationTwoFASetup}).
		Delete(&model.Verification{}).Error
}

// DeleteExpiredVerifications removes challenge rows past their expiry.
// Rows with a null expiry (confirmed 2fa) are never touched.
func (s *VerificationService) DeleteExpiredVerifications() (int64, error) {
	db := database.GetDB()
	result := db.Where("expires_at IS NOT NULL AND expires_at < ?", time.Now()).
		Delete(&model.Verification{})
	return result.RowsAffected, result.Error
}
