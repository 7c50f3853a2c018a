package errs

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesByKind(t *testing.T) {
	err := NotFound("device %q not found", "dev-1")

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrDuplicate))
	assert.Equal(t, `device "dev-1" not found`, err.Error())
}

func TestWrappedKindSurvivesFmtWrap(t *testing.T) {
	inner := Storage(sql.ErrConnDone, "could not list devices")
	outer := fmt.Errorf("list: %w", inner)

	assert.Equal(t, KindStorage, KindOf(outer))
	assert.True(t, errors.Is(outer, ErrStorage))
	assert.True(t, errors.Is(outer, sql.ErrConnDone))
	assert.Equal(t, "could not list devices", Message(outer))
}

func TestKindOfPlainError(t *testing.T) {
	err := errors.New("boom")
	assert.Equal(t, KindUnknown, KindOf(err))
	assert.Equal(t, "boom", Message(err))
}
