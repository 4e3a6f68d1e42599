package fault

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	err := New(InvalidState, "inspection %s is %s", "insp-1", "approved")
	assert.Equal(t, InvalidState, KindOf(err))
	assert.Equal(t, "invalid_state: inspection insp-1 is approved", err.Error())
}

func TestKindOfWrapped(t *testing.T) {
	inner := New(Forbidden, "reviewer capability required")
	wrapped := fmt.Errorf("reassign action: %w", inner)
	assert.True(t, IsKind(wrapped, Forbidden))
	assert.Equal(t, Forbidden, KindOf(wrapped))
}

func TestKindOfForeignError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.False(t, IsKind(nil, NotFound))
}

func TestDetails(t *testing.T) {
	type eval struct{ Missing []string }
	err := New(PreconditionFailed, "submission blocked").WithDetails(eval{Missing: []string{"item-1"}})
	got, ok := DetailsOf(err).(eval)
	assert.True(t, ok)
	assert.Equal(t, []string{"item-1"}, got.Missing)
}
