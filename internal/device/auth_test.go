package device

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/vidcast/internal/db/dbmock"
	"github.com/Nixie-Tech-LLC/vidcast/internal/errs"
	"github.com/Nixie-Tech-LLC/vidcast/internal/http/middleware"
	"github.com/Nixie-Tech-LLC/vidcast/internal/model"
)

const testKey = "0b9d7c3e-5f5a-4e8e-9a55-1c2b3d4e5f60"

func strPtr(s string) *string { return &s }

func TestLoginClaimsKeyOnFirstContact(t *testing.T) {
	store := new(dbmock.Store)
	store.On("GetDeviceByDeviceID", "pi-001").Return(&model.Device{DeviceID: "pi-001", IsActive: true}, nil)
	store.On("ClaimAPIKey", "pi-001", testKey).Return(true, nil)
	store.On("TouchDevice", "pi-001", mock.Anything).Return(nil)

	a := NewAuthenticator(store, "secret", time.Hour)
	token, dev, err := a.Login(context.Background(), "pi-001", testKey)
	require.NoError(t, err)
	assert.Equal(t, testKey, *dev.APIKey)

	id, err := middleware.ParseDeviceJWT(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, "pi-001", id)
}

func TestLoginComparesExistingKey(t *testing.T) {
	store := new(dbmock.Store)
	store.On("GetDeviceByDeviceID", "pi-001").Return(&model.Device{DeviceID: "pi-001", IsActive: true, APIKey: strPtr(testKey)}, nil)
	store.On("TouchDevice", "pi-001", mock.Anything).Return(nil)

	a := NewAuthenticator(store, "secret", time.Hour)
	_, _, err := a.Login(context.Background(), "pi-001", "some-other-key-value")
	assert.True(t, errors.Is(err, errs.ErrInvalidCredentials))

	_, _, err = a.Login(context.Background(), "pi-001", testKey)
	assert.NoError(t, err)
	store.AssertNotCalled(t, "ClaimAPIKey", mock.Anything, mock.Anything)
}

func TestLoginLosesClaimRace(t *testing.T) {
	store := new(dbmock.Store)
	store.On("GetDeviceByDeviceID", "pi-001").Return(&model.Device{DeviceID: "pi-001", IsActive: true}, nil).Once()
	store.On("GetDeviceByDeviceID", "pi-001").Return(&model.Device{DeviceID: "pi-001", IsActive: true, APIKey: strPtr("the-winner-key-0001")}, nil)
	store.On("ClaimAPIKey", "pi-001", testKey).Return(false, nil)

	a := NewAuthenticator(store, "secret", time.Hour)
	_, _, err := a.Login(context.Background(), "pi-001", testKey)
	assert.True(t, errors.Is(err, errs.ErrInvalidCredentials))
}

func TestLoginRejections(t *testing.T) {
	store := new(dbmock.Store)
	store.On("GetDeviceByDeviceID", "ghost").Return(nil, errs.NotFound("get device: not found"))
	store.On("GetDeviceByDeviceID", "off").Return(&model.Device{DeviceID: "off", IsActive: false, APIKey: strPtr(testKey)}, nil)
	store.On("GetDeviceByDeviceID", "new").Return(&model.Device{DeviceID: "new", IsActive: true}, nil)

	a := NewAuthenticator(store, "secret", time.Hour)
	ctx := context.Background()

	_, _, err := a.Login(ctx, "ghost", testKey)
	assert.True(t, errors.Is(err, errs.ErrInvalidCredentials))

	_, _, err = a.Login(ctx, "off", testKey)
	assert.True(t, errors.Is(err, errs.ErrForbidden))

	_, _, err = a.Login(ctx, "new", "short")
	assert.True(t, errors.Is(err, errs.ErrValidation))

	_, _, err = a.Login(ctx, "", testKey)
	assert.True(t, errors.Is(err, errs.ErrInvalidCredentials))
}

func TestVerifyDevice(t *testing.T) {
	store := new(dbmock.Store)
	active := &model.Device{DeviceID: "pi-001", IsActive: true}
	store.On("GetDeviceByAPIKey", testKey).Return(active, nil)
	store.On("GetDeviceByAPIKey", "unknown-key-000000").Return(nil, errs.NotFound("get device: not found"))
	store.On("GetDeviceByAPIKey", "broken-key-0000000").Return(nil, errs.Storage(errors.New("conn reset"), "get device"))
	store.On("GetDeviceByDeviceID", "pi-001").Return(active, nil)
	store.On("GetDeviceByDeviceID", "pi-off").Return(&model.Device{DeviceID: "pi-off"}, nil)

	a := NewAuthenticator(store, "secret", time.Hour)
	ctx := context.Background()

	dev, err := a.VerifyDevice(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, "pi-001", dev.DeviceID)

	token, _ := middleware.GenerateDeviceJWT("pi-001", "secret", time.Hour)
	dev, err = a.VerifyDevice(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "pi-001", dev.DeviceID)

	forged, _ := middleware.GenerateDeviceJWT("pi-001", "not-the-secret", time.Hour)
	dev, err = a.VerifyDevice(ctx, forged)
	assert.NoError(t, err)
	assert.Nil(t, dev)

	offToken, _ := middleware.GenerateDeviceJWT("pi-off", "secret", time.Hour)
	dev, err = a.VerifyDevice(ctx, offToken)
	assert.NoError(t, err)
	assert.Nil(t, dev)

	dev, err = a.VerifyDevice(ctx, "unknown-key-000000")
	assert.NoError(t, err)
	assert.Nil(t, dev)

	_, err = a.VerifyDevice(ctx, "broken-key-0000000")
	assert.Error(t, err)
}
