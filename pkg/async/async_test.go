package async

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestZeroValueIsPending(t *testing.T) {
	var r Result[string]
	assert.True(t, r.IsPending())
	assert.Equal(t, "pending", r.State().String())

	_, ok := r.Value()
	assert.False(t, ok)
	assert.NoError(t, r.Err())
}

func TestOk(t *testing.T) {
	r := Ok(42)
	v, ok := r.Value()
	assert.True(t, ok)
	assert.Equal(t, 42, v)
	assert.True(t, r.IsOk())
	assert.False(t, r.IsErr())
}

func TestErr(t *testing.T) {
	cause := errors.New("identity provider timeout")
	r := Err[int](cause)
	assert.True(t, r.IsErr())
	assert.ErrorIs(t, r.Err(), cause)

	_, ok := r.Value()
	assert.False(t, ok)
}

func TestErr_NilReasonStillFails(t *testing.T) {
	r := Err[int](nil)
	assert.True(t, r.IsErr())
	assert.Error(t, r.Err())
}

func TestFrom(t *testing.T) {
	assert.True(t, From("x", nil).IsOk())
	assert.True(t, From("", errors.New("boom")).IsErr())
}
