package middleware

import (
	"fmt"
	"net/http"
	"net/netip"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// ParseNetworks reads a comma separated list of CIDRs or bare addresses.
func ParseNetworks(list string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, raw := range strings.Split(list, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.Contains(raw, "/") {
			p, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid network %q: %w", raw, err)
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid address %q: %w", raw, err)
		}
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

// AllowNetworks admits only clients inside nets. With no networks configured
// only loopback clients pass.
func AllowNetworks(nets []netip.Prefix) gin.HandlerFunc {
	return func(c *gin.Context) {
		addr, err := netip.ParseAddr(c.ClientIP())
		if err == nil {
			addr = addr.Unmap()
			if allowed(addr, nets) {
				c.Next()
				return
			}
		}
		log.Warn().Str("client_ip", c.ClientIP()).Str("path", c.Request.URL.Path).Msg("[netallow] client outside allowed networks")
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "access denied"})
	}
}

func allowed(addr netip.Addr, nets []netip.Prefix) bool {
	if len(nets) == 0 {
		return addr.IsLoopback()
	}
	for _, n := range nets {
		if n.Contains(addr) {
			return true
		}
	}
	return false
}
