// Package mockstorage provides a testify-based mock implementation
// of the storage interfaces used by the auth, service and router packages.
// It is used for unit testing failure paths the real backends cannot
// produce on demand.
package mockstorage

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/shrturl/shrturl/internal/alias"
	"github.com/shrturl/shrturl/internal/user"
)

// StorageMock is a testify mock that implements the full storage contract.
type StorageMock struct {
	mock.Mock
}

// CreateUser mocks user creation.
func (m *StorageMock) CreateUser(ctx context.Context, usr *user.User) (*user.User, error) {
	args := m.Called(ctx, usr)
	created, _ := args.Get(0).(*user.User)
	return created, args.Error(1)
}

// FindUserByEmail mocks looking a user up by email.
func (m *StorageMock) FindUserByEmail(ctx context.Context, email string) (*user.User, bool, error) {
	args := m.Called(ctx, email)
	usr, _ := args.Get(0).(*user.User)
	return usr, args.Bool(1), args.Error(2)
}

// GetUserByID mocks fetching a user by its UUID.
func (m *StorageMock) GetUserByID(ctx context.Context, userID string) (*user.User, bool, error) {
	args := m.Called(ctx, userID)
	usr, _ := args.Get(0).(*user.User)
	return usr, args.Bool(1), args.Error(2)
}

// InsertAlias mocks inserting a new alias record.
func (m *StorageMock) InsertAlias(ctx context.Context, a *alias.Alias) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

// FindAliasByName mocks finding an alias by its short token.
func (m *StorageMock) FindAliasByName(ctx context.Context, name string) (*alias.Alias, bool, error) {
	args := m.Called(ctx, name)
	record, _ := args.Get(0).(*alias.Alias)
	return record, args.Bool(1), args.Error(2)
}

// FindAliasByPublicLink mocks finding an alias by its public link.
func (m *StorageMock) FindAliasByPublicLink(ctx context.Context, publicLink string) (*alias.Alias, bool, error) {
	args := m.Called(ctx, publicLink)
	record, _ := args.Get(0).(*alias.Alias)
	return record, args.Bool(1), args.Error(2)
}

// RegisterVisit mocks the atomic visit counter/log mutation.
func (m *StorageMock) RegisterVisit(ctx context.Context, name, visitorAddr string) (bool, error) {
	args := m.Called(ctx, name, visitorAddr)
	return args.Bool(0), args.Error(1)
}

// GetUserAliases mocks the per-user listing.
func (m *StorageMock) GetUserAliases(ctx context.Context, ownerID string) ([]alias.Alias, error) {
	args := m.Called(ctx, ownerID)
	records, _ := args.Get(0).([]alias.Alias)
	return records, args.Error(1)
}

// GetAliasesPage mocks the admin paging query.
func (m *StorageMock) GetAliasesPage(ctx context.Context, skip, limit int) ([]alias.Alias, error) {
	args := m.Called(ctx, skip, limit)
	records, _ := args.Get(0).([]alias.Alias)
	return records, args.Error(1)
}

// Ping mocks the health check.
func (m *StorageMock) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Close mocks closing the storage.
func (m *StorageMock) Close() error {
	args := m.Called()
	return args.Error(0)
}
