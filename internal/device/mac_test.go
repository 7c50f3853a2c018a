package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/vidcast/internal/errs"
)

func TestNormalizeMACCanonicalForm(t *testing.T) {
	for _, in := range []string{
		"aa:bb:cc:dd:ee:ff",
		"AA:BB:CC:DD:EE:FF",
		"AA-BB-CC-DD-EE-FF",
		"aabb.ccdd.eeff",
		" aa:bb:cc:dd:ee:ff ",
	} {
		got, err := NormalizeMAC(in)
		require.NoError(t, err, in)
		assert.Equal(t, "aa:bb:cc:dd:ee:ff", got, in)
	}
}

func TestNormalizeMACRejectsOtherLengths(t *testing.T) {
	for _, in := range []string{
		"",
		"nope",
		"02:00:5e:10:00:00:00:01",
		"00:00:00:00:fe:80:00:00:00:00:00:00:02:00:5e:10:00:00:00:01",
	} {
		_, err := NormalizeMAC(in)
		assert.Equal(t, errs.KindValidation, errs.KindOf(err), in)
	}
}
