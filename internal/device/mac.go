package device

import (
	"net"
	"strings"

	"github.com/Nixie-Tech-LLC/vidcast/internal/errs"
)

// NormalizeMAC parses any notation net.ParseMAC accepts and returns the
// lowercase colon form. Only 6-byte addresses are valid device MACs.
func NormalizeMAC(raw string) (string, error) {
	hw, err := net.ParseMAC(strings.TrimSpace(raw))
	if err != nil {
		return "", errs.Validation("mac_address must be a MAC address")
	}
	if len(hw) != 6 {
		return "", errs.Validation("mac_address must be a 6-byte MAC address")
	}
	return hw.String(), nil
}
