package errs_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavesplatform/assetindex/internal/errs"
)

func TestKindOf(t *testing.T) {
	cause := errors.New("boom")
	err := errs.Projection(42, cause)

	kind, ok := errs.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindProjection, kind)
	assert.True(t, kind.IsFatal())
}

func TestKindOfUnwrapsWrappedErrors(t *testing.T) {
	cause := errs.Transient(errors.New("connection reset"))
	wrapped := fmt.Errorf("retry failed: %w", cause)

	kind, ok := errs.KindOf(wrapped)
	require.True(t, ok)
	assert.Equal(t, errs.KindTransient, kind)
	assert.False(t, kind.IsFatal())
}

func TestKindOfFalseForPlainErrors(t *testing.T) {
	_, ok := errs.KindOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestNilWrapReturnsNil(t *testing.T) {
	assert.Nil(t, errs.Transient(nil))
	assert.Nil(t, errs.Constraint(nil))
	assert.Nil(t, errs.Ordering(1, nil))
	assert.Nil(t, errs.Projection(1, nil))
	assert.Nil(t, errs.ReopenInconsistency(nil))
}

func TestErrorMessageIncludesHeightWhenSet(t *testing.T) {
	err := errs.Ordering(100, errors.New("height went backwards"))
	assert.Contains(t, err.Error(), "100")
}
