package service

import (
	"errors"

	"github.com/RibkiAnas/resumaker/database"
	"github.com/RibkiAnas/resumaker/database/model"

	"github.com/google/uuid"
)

// ConnectionService manages links between accounts and OAuth identities.
type ConnectionService struct {
	userService UserService
}

func (s *ConnectionService) GetConnection(providerName, providerID string) (*model.Connection, error) {
	db := database.GetDB()

	connection := &model.Connection{}
	err := db.Model(model.Connection{}).
		Where("provider_name = ? AND provider_id = ?", providerName, providerID).
		First(connection).
		Error
	if err != nil {
		return nil, err
	}
	return connection, nil
}

func (s *ConnectionService) ListUserConnections(userID string) ([]model.Connection, error) {
	db := database.GetDB()

	connections := make([]model.Connection, 0)
	err := db.Model(model.Connection{}).
		Where("user_id = ?", userID).
		Find(&connections).
		Error
	if err != nil {
		return nil, err
	}
	return connections, nil
}

// CreateConnection links the provider identity to the user. The
// (provider, id) pair is unique, so a second link attempt fails.
func (s *ConnectionService) CreateConnection(userID, providerName, providerID string) (*model.Connection, error) {
	connection := &model.Connection{
		ID:           uuid.NewString(),
		ProviderName: providerName,
		ProviderID:   providerID,
		UserID:       userID,
	}

	db := database.GetDB()
	if err := db.Create(connection).Error; err != nil {
		return nil, err
	}
	return connection, nil
}

// DeleteConnection unlinks a provider, refusing when that would leave
// the account with no way to sign in.
func (s *ConnectionService) DeleteConnection(userID, connectionID string) error {
	db := database.GetDB()

	connection := &model.Connection{}
	err := db.Model(model.Connection{}).
		Where("id = ? AND user_id = ?", connectionID, userID).
		First(connection).
		Error
	if err != nil {
		return err
	}

	if !s.userService.HasPassword(userID) {
		connections, err := s.ListUserConnections(userID)
		if err != nil {
			return err
		}
		if len(connections) <= 1 {
			return errors.New("cannot delete the last login method")
		}
	}

	return db.Delete(connection).Error
}
