package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker/v2"

	"github.com/Nixie-Tech-LLC/vidcast/internal/model"
)

var (
	// ErrDirectoryRejected means the directory answered and refused the bind.
	ErrDirectoryRejected = errors.New("directory rejected credentials")
	// ErrDirectoryUnavailable means no directory is configured or reachable.
	ErrDirectoryUnavailable = errors.New("directory unavailable")
)

// Directory verifies external (Active Directory) credentials.
type Directory interface {
	Bind(ctx context.Context, user *model.User, password string) error
}

type binder interface {
	Bind(username, password string) error
}

type dialFunc func(url string, timeout time.Duration) (binder, func(), error)

type LDAPConfig struct {
	URL     string
	Domain  string
	Timeout time.Duration
}

// LDAPDirectory performs a simple bind against an LDAP/AD server.
type LDAPDirectory struct {
	cfg     LDAPConfig
	dial    dialFunc
	breaker *gobreaker.CircuitBreaker[struct{}]
}

func NewLDAPDirectory(cfg LDAPConfig) *LDAPDirectory {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &LDAPDirectory{cfg: cfg, dial: dialLDAP, breaker: newDirectoryBreaker(cfg.URL)}
}

func newDirectoryBreaker(name string) *gobreaker.CircuitBreaker[struct{}] {
	return gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "ldap " + name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		// a refused password is a healthy directory
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrDirectoryRejected)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("[auth] directory circuit breaker state changed")
		},
	})
}

func dialLDAP(url string, timeout time.Duration) (binder, func(), error) {
	conn, err := ldap.DialURL(url, ldap.DialWithDialer(&net.Dialer{Timeout: timeout}))
	if err != nil {
		return nil, nil, err
	}
	conn.SetTimeout(timeout)
	return conn, func() { conn.Close() }, nil
}

// bindName prefers the stored distinguished name, then a UPN built from the domain.
func (d *LDAPDirectory) bindName(user *model.User) string {
	if user.ADDN != nil && *user.ADDN != "" {
		return *user.ADDN
	}
	if strings.ContainsAny(user.Username, `@\`) || d.cfg.Domain == "" {
		return user.Username
	}
	return user.Username + "@" + d.cfg.Domain
}

func (d *LDAPDirectory) Bind(ctx context.Context, user *model.User, password string) error {
	if d.cfg.URL == "" {
		return ErrDirectoryUnavailable
	}
	// an empty password would be an unauthenticated bind, which servers accept
	if password == "" {
		return ErrDirectoryRejected
	}

	timeout := d.cfg.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		return fmt.Errorf("%w: %v", ErrDirectoryUnavailable, context.DeadlineExceeded)
	}

	_, err := d.breaker.Execute(func() (struct{}, error) {
		conn, closeConn, err := d.dial(d.cfg.URL, timeout)
		if err != nil {
			return struct{}{}, fmt.Errorf("%w: dial: %v", ErrDirectoryUnavailable, err)
		}
		defer closeConn()

		if err := conn.Bind(d.bindName(user), password); err != nil {
			if ldap.IsErrorWithCode(err, ldap.LDAPResultInvalidCredentials) {
				return struct{}{}, ErrDirectoryRejected
			}
			return struct{}{}, fmt.Errorf("%w: bind: %v", ErrDirectoryUnavailable, err)
		}
		return struct{}{}, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}
	return err
}

// NoDirectory is used when LDAP is not configured.
type NoDirectory struct{}

func (NoDirectory) Bind(context.Context, *model.User, string) error {
	return ErrDirectoryUnavailable
}
