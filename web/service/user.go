package service

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/RibkiAnas/resumaker/database"
	"github.com/RibkiAnas/resumaker/database/model"
	"github.com/RibkiAnas/resumaker/logger"
	"github.com/RibkiAnas/resumaker/util/common"
	"github.com/RibkiAnas/resumaker/util/crypto"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserService manages accounts, credentials and profile data.
type UserService struct{}

func (s *UserService) GetUser(id string) (*model.User, error) {
	db := database.GetDB()

	user := &model.User{}
	err := db.Model(model.User{}).
		Preload("Roles.Permissions").
		Where("id = ?", id).
		First(user).
		Error
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) GetUserByEmail(email string) (*model.User, error) {
	db := database.GetDB()

	user := &model.User{}
	err := db.Model(model.User{}).
		Where("email = ?", strings.ToLower(email)).
		First(user).
		Error
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) GetUserByUsername(username string) (*model.User, error) {
	db := database.GetDB()

	user := &model.User{}
	err := db.Model(model.User{}).
		Where("username = ?", strings.ToLower(username)).
		First(user).
		Error
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetUserByLogin resolves a login identifier that may be either a
// username or an email address.
func (s *UserService) GetUserByLogin(login string) (*model.User, error) {
	db := database.GetDB()

	user := &model.User{}
	err := db.Model(model.User{}).
		Where("username = ? OR email = ?", strings.ToLower(login), strings.ToLower(login)).
		First(user).
		Error
	if err != nil {
		return nil, err
	}
	return user, nil
}

// CheckUser verifies a username (or email) and password pair. It returns
// nil for unknown users and for wrong passwords alike, so callers cannot
// tell the two apart.
func (s *UserService) CheckUser(login string, password string) *model.User {
	user, err := s.GetUserByLogin(login)
	if err == gorm.ErrRecordNotFound {
		return nil
	} else if err != nil {
		logger.Warning("check user err:", err)
		return nil
	}

	hash, err := s.getPasswordHash(user.ID)
	if err != nil {
		// OAuth-only accounts have no password row
		return nil
	}

	if !crypto.CheckPasswordHash(hash, password) {
		return nil
	}

	return user
}

func (s *UserService) getPasswordHash(userID string) (string, error) {
	db := database.GetDB()

	password := &model.Password{}
	err := db.Model(model.Password{}).
		Where("user_id = ?", userID).
		First(password).
		Error
	if err != nil {
		return "", err
	}
	return password.Hash, nil
}

// HasPassword reports whether the user can sign in with a password.
func (s *UserService) HasPassword(userID string) bool {
	_, err := s.getPasswordHash(userID)
	return err == nil
}

// CreateUser creates an account with the "user" role. password may be
// empty for accounts created through an OAuth provider.
func (s *UserService) CreateUser(email, username, name, password string) (*model.User, error) {
	db := database.GetDB()

	user := &model.User{
		ID:       uuid.NewString(),
		Email:    strings.ToLower(email),
		Username: strings.ToLower(username),
		Name:     name,
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		userRole := &model.Role{}
		if err := tx.Where("name = ?", "user").First(userRole).Error; err != nil {
			return err
		}
		user.Roles = []model.Role{*userRole}

		if err := tx.Omit("Roles.*").Create(user).Error; err != nil {
			return err
		}

		if password == "" {
			return nil
		}
		hash, err := crypto.HashPasswordAsBcrypt(password)
		if err != nil {
			return err
		}
		return tx.Create(&model.Password{
			Hash:   hash,
			UserID: user.ID,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// UpdateProfile changes name and username. The username must stay unique.
func (s *UserService) UpdateProfile(userID, name, username string) error {
	if username == "" {
		return errors.New("username can not be empty")
	}
	db := database.GetDB()

	existing := &model.User{}
	err := db.Model(model.User{}).
		Where("username = ? AND id != ?", strings.ToLower(username), userID).
		First(existing).
		Error
	if err == nil {
		return common.NewErrorf("username %s is already taken", username)
	} else if !database.IsNotFound(err) {
		return err
	}

	return db.Model(model.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{"name": name, "username": strings.ToLower(username)}).
		Error
}

// UpdateEmail moves the account to a new address. Caller has already
// verified that the user controls it.
func (s *UserService) UpdateEmail(userID, email string) error {
	db := database.GetDB()
	return db.Model(model.User{}).
		Where("id = ?", userID).
		Update("email", strings.ToLower(email)).
		Error
}

// SetPassword replaces (or creates) the user's password hash.
func (s *UserService) SetPassword(userID, password string) error {
	if password == "" {
		return errors.New("password can not be empty")
	}
	hash, err := crypto.HashPasswordAsBcrypt(password)
	if err != nil {
		return err
	}

	db := database.GetDB()
	existing := &model.Password{}
	err = db.Model(model.Password{}).Where("user_id = ?", userID).First(existing).Error
	if database.IsNotFound(err) {
		return db.Create(&model.Password{
			Hash:   hash,
			UserID: userID,
		}).Error
	} else if err != nil {
		return err
	}
	return db.Model(model.Password{}).
		Where("user_id = ?", userID).
		Update("hash", hash).
		Error
}

// ChangePassword verifies the current password before setting a new one.
func (s *UserService) ChangePassword(userID, currentPassword, newPassword string) error {
	hash, err := s.getPasswordHash(userID)
	if err != nil {
		return err
	}
	if !crypto.CheckPasswordHash(hash, currentPassword) {
		return errors.New("incorrect password")
	}
	return s.SetPassword(userID, newPassword)
}

// HasPermission checks the action:entity:access triples granted through
// the user's roles. access "" accepts any access level.
func (s *UserService) HasPermission(userID, action, entity, access string) (bool, error) {
	user, err := s.GetUser(userID)
	if err != nil {
		return false, err
	}
	for _, role := range user.Roles {
		for _, perm := range role.Permissions {
			if perm.Action != action || perm.Entity != entity {
				continue
			}
			if access == "" || perm.Access == access {
				return true, nil
			}
		}
	}
	return false, nil
}

// HasRole reports whether the user carries the named role.
func (s *UserService) HasRole(userID, roleName string) (bool, error) {
	user, err := s.GetUser(userID)
	if err != nil {
		return false, err
	}
	for _, role := range user.Roles {
		if role.Name == roleName {
			return true, nil
		}
	}
	return false, nil
}

// SetUserImage replaces the profile photo in a single transaction.
func (s *UserService) SetUserImage(userID, altText, contentType string, blob []byte) error {
	db := database.GetDB()
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&model.UserImage{}).Error; err != nil {
			return err
		}
		return tx.Create(&model.UserImage{
			ID:          uuid.NewString(),
			AltText:     altText,
			ContentType: contentType,
			Blob:        blob,
			UserID:      userID,
		}).Error
	})
}

func (s *UserService) GetUserImage(userID string) (*model.UserImage, error) {
	db := database.GetDB()

	image := &model.UserImage{}
	err := db.Model(model.UserImage{}).
		Where("user_id = ?", userID).
		First(image).
		Error
	if err != nil {
		return nil, err
	}
	return image, nil
}

func (s *UserService) DeleteUserImage(userID string) error {
	db := database.GetDB()
	return db.Where("user_id = ?", userID).Delete(&model.UserImage{}).Error
}

// DeleteUser removes the account and everything hanging off it.
func (s *UserService) DeleteUser(userID string) error {
	db := database.GetDB()
	return db.Transaction(func(tx *gorm.DB) error {
		for _, m := range []any{
			&model.Session{},
			&model.Connection{},
			&model.UserImage{},
			&model.Password{},
		} {
			if err := tx.Where("user_id = ?", userID).Delete(m).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("owner_id = ?", userID).Delete(&model.Resume{}).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM user_roles WHERE user_id = ?", userID).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", userID).Delete(&model.User{}).Error
	})
}

// ExportUserData gathers everything stored about the user as JSON for
// the data download endpoint.
func (s *UserService) ExportUserData(userID string) ([]byte, error) {
	db := database.GetDB()

	user, err := s.GetUser(userID)
	if err != nil {
		return nil, err
	}

	resumes := make([]model.Resume, 0)
	if err := db.Where("owner_id = ?", userID).Find(&resumes).Error; err != nil {
		return nil, err
	}

	connections := make([]model.Connection, 0)
	if err := db.Where("user_id = ?", userID).Find(&connections).Error; err != nil {
		return nil, err
	}

	sessions := make([]model.Session, 0)
	if err := db.Where("user_id = ?", userID).Find(&sessions).Error; err != nil {
		return nil, err
	}

	data := map[string]any{
		"user":        user,
		"resumes":     resumes,
		"connections": connections,
		"sessions":    sessions,
	}

	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, err
	}
	logger.Debugf("exported %s of user data for %s", common.FormatBytes(int64(len(out))), userID)
	return out, nil
}
