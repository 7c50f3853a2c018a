package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Nixie-Tech-LLC/vidcast/internal/auth"
	"github.com/Nixie-Tech-LLC/vidcast/internal/model"
)

const (
	currentUserKey   = "currentUser"
	currentDeviceKey = "currentDevice"
)

// retrieves the session principal from Gin context (after the gate has run).
func GetCurrentUser(c *gin.Context) (*auth.Principal, bool) {
	u, exists := c.Get(currentUserKey)
	if !exists {
		return nil, false
	}
	user, ok := u.(*auth.Principal)
	return user, ok && user != nil
}

// retrieves the authenticated device for /api/client routes.
func GetCurrentDevice(c *gin.Context) (*model.Device, bool) {
	d, exists := c.Get(currentDeviceKey)
	if !exists {
		return nil, false
	}
	device, ok := d.(*model.Device)
	return device, ok && device != nil
}

func SetCurrentUser(c *gin.Context, p *auth.Principal) {
	c.Set(currentUserKey, p)
}

func SetCurrentDevice(c *gin.Context, d *model.Device) {
	c.Set(currentDeviceKey, d)
}

// RequireAdmin rejects principals without is_admin with a 403.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := GetCurrentUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		if !user.IsAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin privileges required"})
			return
		}
		c.Next()
	}
}
