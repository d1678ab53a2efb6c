package publisher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRealm string

func (r fakeRealm) Name() string { return string(r) }

func TestComponentRequiresRealmService(t *testing.T) {
	reg := NewRegistry()
	c := NewComponent(New(&recordingReconciler{}), nil)

	err := c.Activate(reg)
	assert.ErrorIs(t, err, ErrRealmServiceUnbound)
	assert.False(t, c.Active())
	assert.Empty(t, reg.Names())
}

func TestComponentLifecycle(t *testing.T) {
	reg := NewRegistry()
	rec := &recordingReconciler{}
	c := NewComponent(New(rec), nil)

	c.SetRealmService(fakeRealm("PRIMARY"))
	require.NotNil(t, c.RealmService())
	assert.Equal(t, "PRIMARY", c.RealmService().Name())

	require.NoError(t, c.Activate(reg))
	assert.True(t, c.Active())
	assert.Equal(t, []string{DefaultName}, reg.Names())

	reg.PublishSessionCreation(context.Background(), sessionData("alice"))
	assert.Len(t, rec.events, 1)

	c.Deactivate(reg)
	assert.False(t, c.Active())
	assert.Empty(t, reg.Names())

	// Deactivating twice is harmless.
	c.Deactivate(reg)

	c.UnsetRealmService(fakeRealm("PRIMARY"))
	assert.Nil(t, c.RealmService())
}

func TestComponentActivateTwiceFails(t *testing.T) {
	reg := NewRegistry()
	c := NewComponent(New(&recordingReconciler{}), nil)
	c.SetRealmService(fakeRealm("PRIMARY"))

	require.NoError(t, c.Activate(reg))
	err := c.Activate(reg)
	assert.ErrorIs(t, err, ErrDuplicatePublisher)
	assert.True(t, c.Active())
}
