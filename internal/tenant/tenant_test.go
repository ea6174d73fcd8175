package tenant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextRoundTrip(t *testing.T) {
	_, err := MustFrom(context.Background())
	assert.ErrorIs(t, err, ErrMissing)

	ctx := With(context.Background(), Context{TenantID: "town", UserID: "clerk"})
	tc, err := MustFrom(ctx)
	require.NoError(t, err)
	assert.Equal(t, "town", tc.TenantID)
	assert.Equal(t, "clerk", tc.Actor())

	_, ok := From(With(context.Background(), Context{UserID: "clerk"}))
	assert.False(t, ok, "a user without a tenant is not a tenant context")
	assert.Equal(t, SystemActor, Context{TenantID: "town"}.Actor())
}
