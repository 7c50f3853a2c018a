package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker/v2"

	"github.com/Nixie-Tech-LLC/vidcast/internal/errs"
	"github.com/Nixie-Tech-LLC/vidcast/internal/model"
)

var Services = map[string]bool{"videoloop": true, "kiosk": true}

var ServiceActions = map[string]bool{"start": true, "stop": true, "restart": true}

// ServiceStatus is what the agent reports for one systemd unit.
type ServiceStatus struct {
	Status  string `json:"status"`
	Active  bool   `json:"active"`
	Enabled bool   `json:"enabled"`
}

// Agent talks to the HTTP agent running on each device. Every host gets its own
// circuit breaker so one dead device does not slow the others down.
type Agent struct {
	client  *http.Client
	port    int
	timeout time.Duration

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[[]byte]
}

func NewAgent(port int, timeout time.Duration) *Agent {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if port <= 0 {
		port = 8000
	}
	return &Agent{
		client:   &http.Client{Timeout: timeout},
		port:     port,
		timeout:  timeout,
		breakers: map[string]*gobreaker.CircuitBreaker[[]byte]{},
	}
}

func (a *Agent) breaker(host string) *gobreaker.CircuitBreaker[[]byte] {
	a.mu.Lock()
	defer a.mu.Unlock()
	if cb, ok := a.breakers[host]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "agent " + host,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("[device] agent circuit breaker state changed")
		},
	})
	a.breakers[host] = cb
	return cb
}

func (a *Agent) url(host, path string) string {
	return "http://" + net.JoinHostPort(host, strconv.Itoa(a.port)) + path
}

func (a *Agent) get(ctx context.Context, host, path string) ([]byte, error) {
	if host == "" {
		return nil, errs.Validation("device has no IP address")
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	body, err := a.breaker(host).Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.url(host, path), nil)
		if err != nil {
			return nil, err
		}
		resp, err := a.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status code %d", resp.StatusCode)
		}
		return data, nil
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, errs.Wrap(errs.KindTimeout, err, "device agent at %s did not answer in time", host)
		}
		return nil, errs.External(err, "device agent at %s unavailable", host)
	}
	return body, nil
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func (a *Agent) ServiceStatus(ctx context.Context, dev *model.Device, service string) (*ServiceStatus, error) {
	if !Services[service] {
		return nil, errs.Validation("unsupported service %q", service)
	}
	body, err := a.get(ctx, dev.Address(), "/service/"+service+"/status")
	if err != nil {
		return nil, err
	}
	var st ServiceStatus
	if err := json.Unmarshal(body, &st); err != nil {
		return nil, errs.External(err, "device agent returned malformed status")
	}
	return &st, nil
}

func (a *Agent) Logs(ctx context.Context, dev *model.Device, lines int) (string, error) {
	if lines <= 0 || lines > 5000 {
		lines = 500
	}
	body, err := a.get(ctx, dev.Address(), "/api/logs?lines="+strconv.Itoa(lines))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// Probe reports whether the agent on host answers.
func (a *Agent) Probe(ctx context.Context, host string) error {
	_, err := a.get(ctx, host, "/service/videoloop/status")
	return err
}
