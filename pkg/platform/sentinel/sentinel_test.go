package sentinel

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrappedSentinelsStayDistinct(t *testing.T) {
	notFound := fmt.Errorf("get session: %w", ErrNotFound)
	conflict := fmt.Errorf("save session: %w", ErrConflict)

	assert.ErrorIs(t, notFound, ErrNotFound)
	assert.NotErrorIs(t, notFound, ErrConflict)
	assert.ErrorIs(t, conflict, ErrConflict)
	assert.NotErrorIs(t, conflict, ErrNotFound)
	assert.False(t, errors.Is(errors.New("not found"), ErrNotFound), "matching is by identity, not message")
}
