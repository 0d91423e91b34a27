package daemonservice

import (
	"aim-chat/go-backend/internal/domains/contracts"
	"aim-chat/go-backend/pkg/models"
)

// IdentityAPI surface: thin delegation to the identity collaborator, with
// identity persistence refreshed after every key-changing mutation.

func (s *Service) GetIdentity() (models.Identity, error) {
	return s.identityManager.GetIdentity(), nil
}

func (s *Service) SelfContactCard(displayName string) (models.ContactCard, error) {
	return s.identityManager.SelfContactCard(displayName)
}

func (s *Service) CreateIdentity(password string) (models.Identity, string, error) {
	identity, mnemonic, err := s.identityManager.CreateIdentity(password)
	if err != nil {
		return models.Identity{}, "", err
	}
	s.persistIdentity()
	s.wakuNode.SetIdentity(identity.ID)
	return identity, mnemonic, nil
}

func (s *Service) ImportIdentity(mnemonic, password string) (models.Identity, error) {
	identity, err := s.identityManager.ImportIdentity(mnemonic, password)
	if err != nil {
		return models.Identity{}, err
	}
	s.persistIdentity()
	s.wakuNode.SetIdentity(identity.ID)
	return identity, nil
}

func (s *Service) ExportSeed(password string) (string, error) {
	return s.identityManager.ExportSeed(password)
}

func (s *Service) ValidateMnemonic(mnemonic string) bool {
	return s.identityManager.ValidateMnemonic(mnemonic)
}

func (s *Service) ChangePassword(oldPassword, newPassword string) error {
	if err := s.identityManager.ChangePassword(oldPassword, newPassword); err != nil {
		return err
	}
	s.persistIdentity()
	return nil
}

func (s *Service) ListDevices() ([]models.Device, error) {
	return s.identityManager.ListDevices(), nil
}

func (s *Service) AddDevice(name string) (models.Device, error) {
	return s.identityManager.AddDevice(name)
}

func (s *Service) RevokeDevice(deviceID string) (models.DeviceRevocation, error) {
	return s.identityManager.RevokeDevice(deviceID)
}

func (s *Service) persistIdentity() {
	if s.identityState == nil {
		return
	}
	if err := s.identityState.Persist(s.identityManager); err != nil {
		s.recordError(contracts.ErrorCategoryStorage, err)
	}
}
