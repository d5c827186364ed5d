package repository

import (
	"context"

	"hostfold/internal/domain"
)

// Store is the data access contract for correlation state
type Store interface {
	// Hosts
	CreateHost(ctx context.Context, host *domain.Host) error
	GetHost(ctx context.Context, id string) (*domain.Host, error)
	UpdateHost(ctx context.Context, host *domain.Host) error
	ListActiveHosts(ctx context.Context) ([]domain.Host, error)
	ListHosts(ctx context.Context, includeInactive bool) ([]domain.Host, error)
	FindActiveByIP(ctx context.Context, ip string) ([]domain.Host, error)
	FindActiveByMAC(ctx context.Context, mac string) ([]domain.Host, error)
	ReplaceHostTags(ctx context.Context, hostID string, tags []string) error
	ReplaceHostSources(ctx context.Context, hostID string, sources []string) error
	ListMergedInto(ctx context.Context, primaryID string) ([]domain.Host, error)

	// Merge application (transactional)
	ApplyMerge(ctx context.Context, plan *domain.MergePlan) error

	// Device identities
	CreateDeviceIdentity(ctx context.Context, identity *domain.DeviceIdentity) error
	GetDeviceIdentity(ctx context.Context, id string) (*domain.DeviceIdentity, error)
	GetDeviceIdentityByMAC(ctx context.Context, mac string) (*domain.DeviceIdentity, error)
	UpdateDeviceIdentity(ctx context.Context, identity *domain.DeviceIdentity) error
	ListDeviceIdentities(ctx context.Context) ([]domain.DeviceIdentity, error)
	LinkHost(ctx context.Context, deviceID, hostID string) error
	UnlinkHost(ctx context.Context, deviceID, hostID string) error
	ListHostsByDevice(ctx context.Context, deviceID string) ([]domain.Host, error)

	// Conflicts
	CreateConflict(ctx context.Context, conflict *domain.Conflict) error
	GetConflict(ctx context.Context, id string) (*domain.Conflict, error)
	ListConflicts(ctx context.Context, status domain.ConflictStatus) ([]domain.Conflict, error)
	FindPendingConflict(ctx context.Context, hostAID, hostBID, field string) (*domain.Conflict, error)
	ResolveConflict(ctx context.Context, id, resolvedValue, resolvedBy string) error
	ResolvePendingForPair(ctx context.Context, hostAID, hostBID, resolution string) error

	// Run summaries
	SaveRunSummary(ctx context.Context, summary *domain.RunSummary) error
	ListRunSummaries(ctx context.Context, limit int) ([]domain.RunSummary, error)

	Close() error
}
