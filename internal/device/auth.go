// Package device covers everything that talks to or about playback devices:
// bearer authentication, the on-device agent and the background checkers.
package device

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/vidcast/internal/errs"
	"github.com/Nixie-Tech-LLC/vidcast/internal/http/middleware"
	"github.com/Nixie-Tech-LLC/vidcast/internal/model"
)

const MinAPIKeyLength = 16

type AuthStore interface {
	GetDeviceByDeviceID(ctx context.Context, deviceID string) (*model.Device, error)
	GetDeviceByAPIKey(ctx context.Context, apiKey string) (*model.Device, error)
	ClaimAPIKey(ctx context.Context, deviceID, apiKey string) (bool, error)
	TouchDevice(ctx context.Context, deviceID string, seen time.Time) error
}

// Authenticator exchanges device credentials for bearer tokens and checks them.
type Authenticator struct {
	store  AuthStore
	secret string
	ttl    time.Duration
}

func NewAuthenticator(store AuthStore, secret string, ttl time.Duration) *Authenticator {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Authenticator{store: store, secret: secret, ttl: ttl}
}

func (a *Authenticator) TokenTTL() time.Duration { return a.ttl }

// NewAPIKey generates a fresh device API key.
func NewAPIKey() string {
	return uuid.NewString()
}

// Login checks device_id + api_key and returns a signed device token. A device
// whose key is still NULL claims the presented key on first contact.
func (a *Authenticator) Login(ctx context.Context, deviceID, apiKey string) (string, *model.Device, error) {
	if deviceID == "" || apiKey == "" {
		return "", nil, errs.ErrInvalidCredentials
	}
	dev, err := a.store.GetDeviceByDeviceID(ctx, deviceID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return "", nil, errs.ErrInvalidCredentials
		}
		return "", nil, err
	}
	if !dev.IsActive {
		log.Warn().Str("device_id", deviceID).Msg("[device] login refused, device inactive")
		return "", nil, errs.Forbidden("device %s is inactive", deviceID)
	}

	if dev.APIKey == nil {
		if len(apiKey) < MinAPIKeyLength {
			return "", nil, errs.Validation("api_key must be at least %d characters", MinAPIKeyLength)
		}
		claimed, err := a.store.ClaimAPIKey(ctx, deviceID, apiKey)
		if err != nil {
			return "", nil, err
		}
		if claimed {
			log.Info().Str("device_id", deviceID).Msg("[device] api key claimed on first contact")
			dev.APIKey = &apiKey
		} else if dev, err = a.store.GetDeviceByDeviceID(ctx, deviceID); err != nil {
			// lost a race with another claim; compare against the winner
			return "", nil, err
		}
	}
	if dev.APIKey == nil || subtle.ConstantTimeCompare([]byte(*dev.APIKey), []byte(apiKey)) != 1 {
		log.Warn().Str("device_id", deviceID).Msg("[device] login refused, api key mismatch")
		return "", nil, errs.ErrInvalidCredentials
	}

	now := time.Now()
	if err := a.store.TouchDevice(ctx, deviceID, now); err != nil {
		log.Warn().Err(err).Str("device_id", deviceID).Msg("[device] could not update last_seen")
	}
	dev.LastSeen = &now

	token, err := middleware.GenerateDeviceJWT(deviceID, a.secret, a.ttl)
	if err != nil {
		return "", nil, errs.Wrap(errs.KindStorage, err, "could not sign device token")
	}
	return token, dev, nil
}

// VerifyDevice accepts a device JWT or a raw API key. It returns nil for unknown,
// invalid or inactive devices, and an error only when the lookup itself failed.
func (a *Authenticator) VerifyDevice(ctx context.Context, credential string) (*model.Device, error) {
	var (
		dev *model.Device
		err error
	)
	if middleware.LooksLikeJWT(credential) {
		deviceID, perr := middleware.ParseDeviceJWT(credential, a.secret)
		if perr != nil {
			return nil, nil
		}
		dev, err = a.store.GetDeviceByDeviceID(ctx, deviceID)
	} else {
		dev, err = a.store.GetDeviceByAPIKey(ctx, credential)
	}
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !dev.IsActive {
		return nil, nil
	}
	return dev, nil
}
