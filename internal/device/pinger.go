package device

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/Nixie-Tech-LLC/vidcast/internal/db"
	"github.com/Nixie-Tech-LLC/vidcast/internal/metrics"
	"github.com/Nixie-Tech-LLC/vidcast/internal/model"
)

type PingStore interface {
	ListDevices(ctx context.Context, f db.DeviceFilter) ([]model.Device, error)
	TouchDevice(ctx context.Context, deviceID string, seen time.Time) error
}

type Prober interface {
	Probe(ctx context.Context, host string) error
}

type PingResult struct {
	DeviceID   string     `json:"device_id"`
	Name       string     `json:"name"`
	LANActive  bool       `json:"lan_active"`
	WifiActive bool       `json:"wifi_active"`
	Online     bool       `json:"online"`
	LastSeen   *time.Time `json:"last_seen,omitempty"`
}

type PingSummary struct {
	Results    map[string]PingResult `json:"results"`
	Total      int                   `json:"total"`
	Online     int                   `json:"online"`
	Offline    int                   `json:"offline"`
	LANActive  int                   `json:"lan_active"`
	WifiActive int                   `json:"wifi_active"`
}

// PingChecker probes every active device's agent and records last_seen for the
// ones that answer. It never changes is_active, which stays an admin decision.
type PingChecker struct {
	store       PingStore
	prober      Prober
	interval    time.Duration
	concurrency int
	now         func() time.Time
}

func NewPingChecker(store PingStore, prober Prober, interval time.Duration, concurrency int) *PingChecker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if concurrency <= 0 {
		concurrency = 16
	}
	return &PingChecker{store: store, prober: prober, interval: interval, concurrency: concurrency, now: time.Now}
}

func (p *PingChecker) CheckDevice(ctx context.Context, dev *model.Device) PingResult {
	res := PingResult{DeviceID: dev.DeviceID, Name: dev.Name, LastSeen: dev.LastSeen}
	if dev.IPAddressLAN != nil && *dev.IPAddressLAN != "" {
		res.LANActive = p.prober.Probe(ctx, *dev.IPAddressLAN) == nil
	}
	if !res.LANActive && dev.IPAddressWifi != nil && *dev.IPAddressWifi != "" {
		res.WifiActive = p.prober.Probe(ctx, *dev.IPAddressWifi) == nil
	}
	res.Online = res.LANActive || res.WifiActive

	if res.Online {
		metrics.DeviceProbes.WithLabelValues("online").Inc()
		now := p.now()
		if err := p.store.TouchDevice(ctx, dev.DeviceID, now); err != nil {
			log.Error().Err(err).Str("device_id", dev.DeviceID).Msg("[device] could not record last_seen")
		} else {
			res.LastSeen = &now
		}
	} else {
		metrics.DeviceProbes.WithLabelValues("offline").Inc()
	}
	return res
}

// CheckAll probes active devices concurrently, at most concurrency at a time.
func (p *PingChecker) CheckAll(ctx context.Context) (*PingSummary, error) {
	devices, err := p.store.ListDevices(ctx, db.DeviceFilter{ActiveOnly: true})
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	summary := &PingSummary{Results: make(map[string]PingResult, len(devices))}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i := range devices {
		dev := &devices[i]
		g.Go(func() error {
			res := p.CheckDevice(gctx, dev)
			mu.Lock()
			summary.Results[dev.DeviceID] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	summary.Total = len(summary.Results)
	for _, r := range summary.Results {
		if r.Online {
			summary.Online++
		}
		if r.LANActive {
			summary.LANActive++
		}
		if r.WifiActive {
			summary.WifiActive++
		}
	}
	summary.Offline = summary.Total - summary.Online
	return summary, nil
}

func (p *PingChecker) Run(ctx context.Context) {
	log.Info().Dur("interval", p.interval).Msg("[device] ping checker started")
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		summary, err := p.CheckAll(ctx)
		if err != nil {
			log.Error().Err(err).Msg("[device] ping round failed")
		} else {
			log.Info().Int("total", summary.Total).Int("online", summary.Online).Msg("[device] ping round finished")
		}

		select {
		case <-ctx.Done():
			log.Info().Msg("[device] ping checker stopped")
			return
		case <-ticker.C:
		}
	}
}
