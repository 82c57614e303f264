package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bandhan-app/bandhan-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockAccountStore struct{ mock.Mock }

func (m *mockAccountStore) Get(ctx context.Context, accountID string) (*domain.Account, error) {
	args := m.Called(ctx, accountID)
	if a, _ := args.Get(0).(*domain.Account); a != nil {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockAccountStore) Deactivate(ctx context.Context, accountID, reason string, at time.Time) error {
	return m.Called(ctx, accountID, reason, at).Error(0)
}
func (m *mockAccountStore) Activate(ctx context.Context, accountID string, at time.Time) error {
	return m.Called(ctx, accountID, at).Error(0)
}
func (m *mockAccountStore) SoftDelete(ctx context.Context, accountID, reason string, at time.Time) error {
	return m.Called(ctx, accountID, reason, at).Error(0)
}

type mockCooldowns struct{ mock.Mock }

func (m *mockCooldowns) Acquire(ctx context.Context, action, subjectID string, targetID ...string) (bool, error) {
	callArgs := []interface{}{ctx, action, subjectID}
	for _, t := range targetID {
		callArgs = append(callArgs, t)
	}
	args := m.Called(callArgs...)
	return args.Bool(0), args.Error(1)
}
func (m *mockCooldowns) Remaining(ctx context.Context, action, subjectID string, targetID ...string) (time.Duration, error) {
	callArgs := []interface{}{ctx, action, subjectID}
	for _, t := range targetID {
		callArgs = append(callArgs, t)
	}
	args := m.Called(callArgs...)
	return args.Get(0).(time.Duration), args.Error(1)
}

type mockNotificationStore struct{ mock.Mock }

func (m *mockNotificationStore) Put(ctx context.Context, n *domain.Notification) error {
	return m.Called(ctx, n).Error(0)
}

type mockMailer struct{ mock.Mock }

func (m *mockMailer) SendEmail(to, subject, body string) error {
	return m.Called(to, subject, body).Error(0)
}

// --- builder ---

func newService(accounts *mockAccountStore, cooldowns *mockCooldowns, notifs *mockNotificationStore, mailer *mockMailer, degradeOpen bool) Service {
	return NewService(Deps{
		Accounts:      accounts,
		Cooldowns:     cooldowns,
		Notifications: notifs,
		Mailer:        mailer,
		DegradeOpen:   degradeOpen,
	})
}

func activeAccount() *domain.Account {
	return &domain.Account{AccountID: "a1", Email: "a@b.com", Active: true}
}

// --- Deactivate ---

func TestDeactivate_HappyPath_DefaultReason(t *testing.T) {
	accounts := &mockAccountStore{}
	cooldowns := &mockCooldowns{}
	accounts.On("Get", mock.Anything, "a1").Return(activeAccount(), nil)
	cooldowns.On("Remaining", mock.Anything, "status", "a1").Return(time.Duration(0), nil)
	accounts.On("Deactivate", mock.Anything, "a1", "taking a break", mock.Anything).Return(nil)
	cooldowns.On("Acquire", mock.Anything, "status", "a1").Return(true, nil)

	err := newService(accounts, cooldowns, nil, nil, true).Deactivate(context.Background(), "a1", nil)
	require.NoError(t, err)
	accounts.AssertExpectations(t)
	cooldowns.AssertExpectations(t)
}

func TestDeactivate_CustomReason(t *testing.T) {
	accounts := &mockAccountStore{}
	cooldowns := &mockCooldowns{}
	accounts.On("Get", mock.Anything, "a1").Return(activeAccount(), nil)
	cooldowns.On("Remaining", mock.Anything, "status", "a1").Return(time.Duration(0), nil)
	accounts.On("Deactivate", mock.Anything, "a1", "found a match", mock.Anything).Return(nil)
	cooldowns.On("Acquire", mock.Anything, "status", "a1").Return(true, nil)

	reason := "  found a match  "
	err := newService(accounts, cooldowns, nil, nil, true).Deactivate(context.Background(), "a1", &reason)
	require.NoError(t, err)
	accounts.AssertExpectations(t)
}

func TestDeactivate_AlreadyDeactivated(t *testing.T) {
	accounts := &mockAccountStore{}
	accounts.On("Get", mock.Anything, "a1").Return(&domain.Account{AccountID: "a1"}, nil)

	err := newService(accounts, &mockCooldowns{}, nil, nil, true).Deactivate(context.Background(), "a1", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConflict))
	accounts.AssertNotCalled(t, "Deactivate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDeactivate_DeletedAccount_Terminal(t *testing.T) {
	accounts := &mockAccountStore{}
	accounts.On("Get", mock.Anything, "a1").Return(&domain.Account{AccountID: "a1", Deleted: true}, nil)

	err := newService(accounts, &mockCooldowns{}, nil, nil, true).Deactivate(context.Background(), "a1", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConflict))
}

func TestDeactivate_UnderCooldown(t *testing.T) {
	accounts := &mockAccountStore{}
	cooldowns := &mockCooldowns{}
	accounts.On("Get", mock.Anything, "a1").Return(activeAccount(), nil)
	cooldowns.On("Remaining", mock.Anything, "status", "a1").Return(5*time.Hour, nil)

	err := newService(accounts, cooldowns, nil, nil, true).Deactivate(context.Background(), "a1", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCooldown))
	assert.Contains(t, err.Error(), "5 hours")
	accounts.AssertNotCalled(t, "Deactivate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDeactivate_CooldownStoreDown_DegradeClosed(t *testing.T) {
	accounts := &mockAccountStore{}
	cooldowns := &mockCooldowns{}
	accounts.On("Get", mock.Anything, "a1").Return(activeAccount(), nil)
	cooldowns.On("Remaining", mock.Anything, "status", "a1").Return(time.Duration(0), errors.New("redis down"))

	err := newService(accounts, cooldowns, nil, nil, false).Deactivate(context.Background(), "a1", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCooldown))
	accounts.AssertNotCalled(t, "Deactivate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDeactivate_CooldownStoreDown_DegradeOpen_Allows(t *testing.T) {
	accounts := &mockAccountStore{}
	cooldowns := &mockCooldowns{}
	accounts.On("Get", mock.Anything, "a1").Return(activeAccount(), nil)
	cooldowns.On("Remaining", mock.Anything, "status", "a1").Return(time.Duration(0), errors.New("redis down"))
	accounts.On("Deactivate", mock.Anything, "a1", "taking a break", mock.Anything).Return(nil)
	cooldowns.On("Acquire", mock.Anything, "status", "a1").Return(false, errors.New("redis down"))

	err := newService(accounts, cooldowns, nil, nil, true).Deactivate(context.Background(), "a1", nil)
	require.NoError(t, err)
	accounts.AssertExpectations(t)
}

func TestDeactivate_LostRace_Conflict(t *testing.T) {
	accounts := &mockAccountStore{}
	cooldowns := &mockCooldowns{}
	accounts.On("Get", mock.Anything, "a1").Return(activeAccount(), nil)
	cooldowns.On("Remaining", mock.Anything, "status", "a1").Return(time.Duration(0), nil)
	accounts.On("Deactivate", mock.Anything, "a1", "taking a break", mock.Anything).Return(domain.ErrConflict)

	err := newService(accounts, cooldowns, nil, nil, true).Deactivate(context.Background(), "a1", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConflict))
	cooldowns.AssertNotCalled(t, "Acquire", mock.Anything, mock.Anything, mock.Anything)
}

// --- Activate ---

func TestActivate_HappyPath(t *testing.T) {
	accounts := &mockAccountStore{}
	cooldowns := &mockCooldowns{}
	accounts.On("Get", mock.Anything, "a1").Return(&domain.Account{AccountID: "a1"}, nil)
	cooldowns.On("Remaining", mock.Anything, "status", "a1").Return(time.Duration(0), nil)
	accounts.On("Activate", mock.Anything, "a1", mock.Anything).Return(nil)
	cooldowns.On("Acquire", mock.Anything, "status", "a1").Return(true, nil)

	err := newService(accounts, cooldowns, nil, nil, true).Activate(context.Background(), "a1")
	require.NoError(t, err)
	accounts.AssertExpectations(t)
}

func TestActivate_AlreadyActive(t *testing.T) {
	accounts := &mockAccountStore{}
	accounts.On("Get", mock.Anything, "a1").Return(activeAccount(), nil)

	err := newService(accounts, &mockCooldowns{}, nil, nil, true).Activate(context.Background(), "a1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConflict))
}

func TestActivate_SharesCooldownWithDeactivate(t *testing.T) {
	// A recent deactivation blocks reactivation: both directions draw from the
	// same cooldown slot.
	accounts := &mockAccountStore{}
	cooldowns := &mockCooldowns{}
	accounts.On("Get", mock.Anything, "a1").Return(&domain.Account{AccountID: "a1"}, nil)
	cooldowns.On("Remaining", mock.Anything, "status", "a1").Return(23*time.Hour+30*time.Minute, nil)

	err := newService(accounts, cooldowns, nil, nil, true).Activate(context.Background(), "a1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCooldown))
	assert.Contains(t, err.Error(), "24 hours")
}

// --- Delete ---

func TestDelete_ReasonTooShort(t *testing.T) {
	svc := newService(&mockAccountStore{}, &mockCooldowns{}, nil, nil, true)
	err := svc.Delete(context.Background(), "a1", "bye")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

func TestDelete_ReasonTooLong(t *testing.T) {
	long := make([]byte, 501)
	for i := range long {
		long[i] = 'x'
	}
	svc := newService(&mockAccountStore{}, &mockCooldowns{}, nil, nil, true)
	err := svc.Delete(context.Background(), "a1", string(long))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

func TestDelete_HappyPath_NoCooldownGate(t *testing.T) {
	accounts := &mockAccountStore{}
	cooldowns := &mockCooldowns{}
	notifs := &mockNotificationStore{}
	mailer := &mockMailer{}
	accounts.On("Get", mock.Anything, "a1").Return(activeAccount(), nil)
	accounts.On("SoftDelete", mock.Anything, "a1", "moving on with my life", mock.Anything).Return(nil)
	notifs.On("Put", mock.Anything, mock.AnythingOfType("*domain.Notification")).Return(nil)
	mailer.On("SendEmail", "a@b.com", mock.Anything, mock.Anything).Return(nil)

	err := newService(accounts, cooldowns, notifs, mailer, true).Delete(context.Background(), "a1", "moving on with my life")
	require.NoError(t, err)
	// Deletion is never cooled down; no cooldown reads or writes happen.
	cooldowns.AssertNotCalled(t, "Remaining", mock.Anything, mock.Anything, mock.Anything)
	cooldowns.AssertNotCalled(t, "Acquire", mock.Anything, mock.Anything, mock.Anything)
	notifs.AssertExpectations(t)
	mailer.AssertExpectations(t)
}

func TestDelete_AlreadyDeleted(t *testing.T) {
	accounts := &mockAccountStore{}
	accounts.On("Get", mock.Anything, "a1").Return(&domain.Account{AccountID: "a1", Deleted: true}, nil)

	err := newService(accounts, &mockCooldowns{}, nil, nil, true).Delete(context.Background(), "a1", "moving on with my life")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConflict))
	accounts.AssertNotCalled(t, "SoftDelete", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDelete_FarewellFailures_Swallowed(t *testing.T) {
	accounts := &mockAccountStore{}
	notifs := &mockNotificationStore{}
	mailer := &mockMailer{}
	accounts.On("Get", mock.Anything, "a1").Return(activeAccount(), nil)
	accounts.On("SoftDelete", mock.Anything, "a1", "moving on with my life", mock.Anything).Return(nil)
	notifs.On("Put", mock.Anything, mock.Anything).Return(errors.New("dynamo down"))
	mailer.On("SendEmail", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("smtp down"))

	err := newService(accounts, &mockCooldowns{}, notifs, mailer, true).Delete(context.Background(), "a1", "moving on with my life")
	require.NoError(t, err, "the deletion already committed; side effects are best effort")
}

// --- Status ---

func TestStatus_NoCooldown(t *testing.T) {
	accounts := &mockAccountStore{}
	cooldowns := &mockCooldowns{}
	accounts.On("Get", mock.Anything, "a1").Return(activeAccount(), nil)
	cooldowns.On("Remaining", mock.Anything, "status", "a1").Return(time.Duration(0), nil)

	info, err := newService(accounts, cooldowns, nil, nil, true).Status(context.Background(), "a1")
	require.NoError(t, err)
	assert.True(t, info.Active)
	assert.True(t, info.ChangeAllowed)
	assert.Zero(t, info.CooldownHours)
}

func TestStatus_CooldownActive_RoundsUp(t *testing.T) {
	accounts := &mockAccountStore{}
	cooldowns := &mockCooldowns{}
	accounts.On("Get", mock.Anything, "a1").Return(activeAccount(), nil)
	cooldowns.On("Remaining", mock.Anything, "status", "a1").Return(30*time.Minute, nil)

	info, err := newService(accounts, cooldowns, nil, nil, true).Status(context.Background(), "a1")
	require.NoError(t, err)
	assert.False(t, info.ChangeAllowed)
	assert.Equal(t, 1, info.CooldownHours)
}

func TestStatus_DeletedAccount(t *testing.T) {
	accounts := &mockAccountStore{}
	cooldowns := &mockCooldowns{}
	accounts.On("Get", mock.Anything, "a1").Return(&domain.Account{AccountID: "a1", Deleted: true}, nil)

	info, err := newService(accounts, cooldowns, nil, nil, true).Status(context.Background(), "a1")
	require.NoError(t, err)
	assert.True(t, info.Deleted)
	assert.False(t, info.ChangeAllowed)
	cooldowns.AssertNotCalled(t, "Remaining", mock.Anything, mock.Anything, mock.Anything)
}

func TestStatus_CacheDown_ReflectsDegradePolicy(t *testing.T) {
	for _, degradeOpen := range []bool{true, false} {
		accounts := &mockAccountStore{}
		cooldowns := &mockCooldowns{}
		accounts.On("Get", mock.Anything, "a1").Return(activeAccount(), nil)
		cooldowns.On("Remaining", mock.Anything, "status", "a1").Return(time.Duration(0), errors.New("redis down"))

		info, err := newService(accounts, cooldowns, nil, nil, degradeOpen).Status(context.Background(), "a1")
		require.NoError(t, err)
		assert.Equal(t, degradeOpen, info.ChangeAllowed)
	}
}
