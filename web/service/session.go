package service

import (
	"time"

	"github.com/RibkiAnas/resumaker/database"
	"github.com/RibkiAnas/resumaker/database/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SessionService manages server side login sessions. The browser cookie
// only holds the session id, so deleting a row here logs the device out.
type SessionService struct {
	settingService SettingService
}

// CreateSession opens a session for the user using the configured
// lifetime (sessionMaxAge, in days).
func (s *SessionService) CreateSession(userID string) (*model.Session, error) {
	maxAgeDays, err := s.settingService.GetSessionMaxAge()
	if err != nil {
		return nil, err
	}

	session := &model.Session{
		ID:             uuid.NewString(),
		ExpirationDate: time.Now().Add(time.Duration(maxAgeDays) * 24 * time.Hour),
		UserID:         userID,
	}

	db := database.GetDB()
	if err := db.Create(session).Error; err != nil {
		return nil, err
	}
	return session, nil
}

// GetValidSession returns the session only when it exists and has not
// expired. Expired rows are deleted on the way out.
func (s *SessionService) GetValidSession(id string) (*model.Session, error) {
	db := database.GetDB()

	session := &model.Session{}
	err := db.Model(model.Session{}).
		Where("id = ?", id).
		First(session).
		Error
	if err != nil {
		return nil, err
	}

	if session.ExpirationDate.Before(time.Now()) {
		if err := db.Delete(session).Error; err != nil {
			return nil, err
		}
		return nil, gorm.ErrRecordNotFound
	}
	return session, nil
}

func (s *SessionService) DeleteSession(id string) error {
	db := database.GetDB()
	return db.Where("id = ?", id).Delete(&model.Session{}).Error
}

// DeleteOtherSessions logs out every device except the given session.
func (s *SessionService) DeleteOtherSessions(userID, keepID string) (int64, error) {
	db := database.GetDB()
	result := db.Where("user_id = ? AND id != ?", userID, keepID).Delete(&model.Session{})
	return result.RowsAffected, result.Error
}

// DeleteUserSessions logs the user out everywhere.
func (s *SessionService) DeleteUserSessions(userID string) error {
	db := database.GetDB()
	return db.Where("user_id = ?", userID).Delete(&model.Session{}).Error
}

func (s *SessionService) CountUserSessions(userID string) (int64, error) {
	db := database.GetDB()
	var count int64
	err := db.Model(model.Session{}).
		Where("user_id = ? AND expiration_date > ?", userID, time.Now()).
		Count(&count).
		Error
	return count, err
}

// DeleteExpiredSessions removes rows past their expiration date.
func (s *SessionService) DeleteExpiredSessions() (int64, error) {
	db := database.GetDB()
	result := db.Where("expiration_date < ?", time.Now()).Delete(&model.Session{})
	return result.RowsAffected, result.Error
}
