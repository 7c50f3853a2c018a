package endpoints

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Nixie-Tech-LLC/vidcast/internal/db"
	"github.com/Nixie-Tech-LLC/vidcast/internal/device"
	"github.com/Nixie-Tech-LLC/vidcast/internal/http/api"
	"github.com/Nixie-Tech-LLC/vidcast/internal/http/api/admin/control/utils"
	"github.com/Nixie-Tech-LLC/vidcast/internal/model"
	"github.com/Nixie-Tech-LLC/vidcast/internal/notify"
	"github.com/Nixie-Tech-LLC/vidcast/internal/playlist"
	"github.com/Nixie-Tech-LLC/vidcast/internal/storage"
)

// AgentClient talks to the HTTP agent running on a device.
type AgentClient interface {
	ServiceStatus(ctx context.Context, dev *model.Device, service string) (*device.ServiceStatus, error)
	Logs(ctx context.Context, dev *model.Device, lines int) (string, error)
}

type Pinger interface {
	CheckDevice(ctx context.Context, dev *model.Device) device.PingResult
	CheckAll(ctx context.Context) (*device.PingSummary, error)
}

// Deps is everything the control modules share.
type Deps struct {
	Store     db.Store
	Playlists *playlist.Service
	Storage   storage.Storage
	Agent     AgentClient
	Pinger    Pinger
	Publisher notify.Publisher
	Notifier  *utils.Notifier
	Now       func() time.Time
}

func (d *Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d *Deps) publisher() notify.Publisher {
	if d.Publisher == nil {
		return notify.Noop{}
	}
	return d.Publisher
}

func intParam(ctx *gin.Context, name string) (int, *api.APIError) {
	id, err := strconv.Atoi(ctx.Param(name))
	if err != nil || id <= 0 {
		return 0, api.BadRequest("invalid " + strings.ReplaceAll(name, "_", " "))
	}
	return id, nil
}

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02"}

// parseDate reads a form or JSON date. Layouts without a zone are read as UTC.
func parseDate(field, value string) (*time.Time, *api.APIError) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return &t, nil
		}
	}
	return nil, api.BadRequest(field + " must be a date (YYYY-MM-DD or RFC3339)")
}

// parseDateUpdate: nil leaves the field alone, "" clears it.
func parseDateUpdate(field string, value *string) (t *time.Time, clear bool, apiErr *api.APIError) {
	if value == nil {
		return nil, false, nil
	}
	if strings.TrimSpace(*value) == "" {
		return nil, true, nil
	}
	t, apiErr = parseDate(field, *value)
	return t, false, apiErr
}
