package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"hostfold/internal/domain"
	"hostfold/internal/repository"
)

// DeviceService provides business logic for device identity operations
type DeviceService struct {
	repo     repository.Store
	eventBus *EventBus
}

// NewDeviceService creates a new device service
func NewDeviceService(repo repository.Store, eventBus *EventBus) *DeviceService {
	return &DeviceService{
		repo:     repo,
		eventBus: eventBus,
	}
}

// List returns all device identities
func (s *DeviceService) List(ctx context.Context) ([]domain.DeviceIdentity, error) {
	return s.repo.ListDeviceIdentities(ctx)
}

// Get retrieves a device identity by ID
func (s *DeviceService) Get(ctx context.Context, id string) (*domain.DeviceIdentity, error) {
	return s.repo.GetDeviceIdentity(ctx, id)
}

// Hosts returns the active hosts linked to a device identity
func (s *DeviceService) Hosts(ctx context.Context, deviceID string) ([]domain.Host, error) {
	return s.repo.ListHostsByDevice(ctx, deviceID)
}

// CreateFromMAC creates a device identity for a MAC address, seeding
// device type and vendor from the hosts that carry it. Returns the
// existing identity when one is already registered for the MAC.
func (s *DeviceService) CreateFromMAC(ctx context.Context, mac string) (*domain.DeviceIdentity, error) {
	normalized := domain.NormalizeMAC(mac)
	if normalized == "" {
		return nil, fmt.Errorf("invalid MAC address %q", mac)
	}
	if domain.IsLocallyAdministeredMAC(normalized) {
		return nil, fmt.Errorf("MAC %s is locally administered and cannot identify a device", normalized)
	}

	existing, err := s.repo.GetDeviceIdentityByMAC(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	hosts, err := s.repo.FindActiveByMAC(ctx, normalized)
	if err != nil {
		return nil, err
	}

	identity := &domain.DeviceIdentity{
		ID:  uuid.NewString(),
		MAC: normalized,
	}
	for i := range hosts {
		h := &hosts[i]
		if identity.DeviceType == "" || identity.DeviceType == domain.DeviceTypeUnknown {
			if h.DeviceType != "" && h.DeviceType != domain.DeviceTypeUnknown {
				identity.DeviceType = h.DeviceType
			} else if t := domain.InferDeviceType(h.Hostname); t != domain.DeviceTypeUnknown {
				identity.DeviceType = t
			}
		}
		if identity.Vendor == "" {
			identity.Vendor = h.Vendor
		}
	}
	if identity.DeviceType == "" {
		identity.DeviceType = domain.DeviceTypeUnknown
	}

	if err := s.repo.CreateDeviceIdentity(ctx, identity); err != nil {
		return nil, err
	}

	s.eventBus.Publish(Event{
		Type:    EventDeviceCreated,
		Payload: map[string]string{"device_id": identity.ID, "mac": normalized},
	})
	return s.repo.GetDeviceIdentity(ctx, identity.ID)
}

// Link attaches a host to a device identity. Linking is additive: the
// host stays active and keeps all its fields. Returns ErrAlreadyLinked
// when the host belongs to a different identity.
func (s *DeviceService) Link(ctx context.Context, deviceID, hostID string) error {
	identity, err := s.repo.GetDeviceIdentity(ctx, deviceID)
	if err != nil {
		return err
	}
	if identity == nil {
		return fmt.Errorf("device identity %s not found", deviceID)
	}

	host, err := s.repo.GetHost(ctx, hostID)
	if err != nil {
		return err
	}
	if host == nil {
		return fmt.Errorf("host %s not found", hostID)
	}
	if !host.Active {
		return fmt.Errorf("host %s: %w", hostID, ErrStateConflict)
	}
	if host.DeviceIdentityID == deviceID {
		return nil
	}
	if host.DeviceIdentityID != "" {
		return fmt.Errorf("host %s: %w", hostID, ErrAlreadyLinked)
	}

	if err := s.repo.LinkHost(ctx, deviceID, hostID); err != nil {
		return err
	}

	s.eventBus.Publish(Event{
		Type:    EventDeviceLinked,
		Payload: map[string]string{"device_id": deviceID, "host_id": hostID},
	})
	return nil
}

// Unlink detaches a host from a device identity without touching the
// host record itself
func (s *DeviceService) Unlink(ctx context.Context, deviceID, hostID string) error {
	if err := s.repo.UnlinkHost(ctx, deviceID, hostID); err != nil {
		return err
	}

	s.eventBus.Publish(Event{
		Type:    EventDeviceUnlinked,
		Payload: map[string]string{"device_id": deviceID, "host_id": hostID},
	})
	return nil
}

// InferType re-derives the device type for an identity from the
// hostnames of its linked hosts, persisting a change when the current
// type is unknown
func (s *DeviceService) InferType(ctx context.Context, deviceID string) (domain.DeviceType, error) {
	identity, err := s.repo.GetDeviceIdentity(ctx, deviceID)
	if err != nil {
		return domain.DeviceTypeUnknown, err
	}
	if identity == nil {
		return domain.DeviceTypeUnknown, fmt.Errorf("device identity %s not found", deviceID)
	}
	if identity.DeviceType != "" && identity.DeviceType != domain.DeviceTypeUnknown {
		return identity.DeviceType, nil
	}

	hosts, err := s.repo.ListHostsByDevice(ctx, deviceID)
	if err != nil {
		return domain.DeviceTypeUnknown, err
	}
	for i := range hosts {
		if t := domain.InferDeviceType(hosts[i].Hostname); t != domain.DeviceTypeUnknown {
			identity.DeviceType = t
			if err := s.repo.UpdateDeviceIdentity(ctx, identity); err != nil {
				return domain.DeviceTypeUnknown, err
			}
			return t, nil
		}
	}
	return domain.DeviceTypeUnknown, nil
}
