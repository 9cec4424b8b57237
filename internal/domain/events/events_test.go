package events

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishSubscribe(t *testing.T) {
	hub := NewHub(nil)
	ch, cancel := hub.Subscribe(4)
	defer cancel()

	hub.Publish(Event{Kind: ApplicationLaunched, URL: "file://app"})

	e := <-ch
	assert.Equal(t, ApplicationLaunched, e.Kind)
	assert.Equal(t, "file://app", e.URL)
	assert.False(t, e.Time.IsZero())
	_, err := uuid.Parse(e.ID)
	assert.NoError(t, err)
}

func TestSlowSubscriberDrops(t *testing.T) {
	hub := NewHub(nil)
	ch, cancel := hub.Subscribe(1)
	defer cancel()

	hub.Publish(Event{Kind: EnvironmentCreated})
	hub.Publish(Event{Kind: EnvironmentDestroyed})

	e := <-ch
	assert.Equal(t, EnvironmentCreated, e.Kind)
	assert.Empty(t, ch)
}

func TestCancel(t *testing.T) {
	hub := NewHub(nil)
	ch, cancel := hub.Subscribe(1)
	require.Equal(t, 1, hub.Subscribers())

	cancel()
	cancel()

	assert.Equal(t, 0, hub.Subscribers())
	_, open := <-ch
	assert.False(t, open)

	hub.Publish(Event{Kind: LaunchFailed})
}

func TestNilHub(t *testing.T) {
	var hub *Hub
	assert.NotPanics(t, func() { hub.Publish(Event{Kind: LaunchFailed}) })
}
