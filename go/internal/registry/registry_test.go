package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterReplacesPriorRunner(t *testing.T) {
	r := New()

	ctx1, h1 := r.Register(context.Background(), "u1/t1")
	require.NoError(t, ctx1.Err())

	ctx2, _ := r.Register(context.Background(), "u1/t1")

	assert.ErrorIs(t, ctx1.Err(), context.Canceled, "first runner must be cancelled")
	assert.NoError(t, ctx2.Err())
	assert.Equal(t, 1, r.Len())
	_ = h1
}

func TestCancelIsIdempotent(t *testing.T) {
	r := New()
	ctx, _ := r.Register(context.Background(), "u1/t1")

	assert.True(t, r.Cancel("u1/t1"))
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
	assert.False(t, r.Cancel("u1/t1"))
	assert.False(t, r.Active("u1/t1"))
}

func TestClearOnlyRemovesOwnHandle(t *testing.T) {
	r := New()
	_, h1 := r.Register(context.Background(), "u1/t1")
	_, h2 := r.Register(context.Background(), "u1/t1")

	// The old runner finishing must not unregister the new one.
	r.Clear("u1/t1", h1)
	assert.True(t, r.Active("u1/t1"))

	r.Clear("u1/t1", h2)
	assert.False(t, r.Active("u1/t1"))
}

func TestIndependentTasks(t *testing.T) {
	r := New()
	ctx1, _ := r.Register(context.Background(), "u1/t1")
	_, _ = r.Register(context.Background(), "u1/t2")

	assert.NoError(t, ctx1.Err(), "registering another task must not cancel this one")
	assert.Equal(t, 2, r.Len())
}
