package events

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus()

	var received *Event
	calls := 0
	bus.Subscribe(EventAppointmentCreated, func(event *Event) error {
		received = event
		calls++
		return nil
	})

	start := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	err := bus.PublishJSON(EventAppointmentCreated, AppointmentEventPayload{
		AppointmentID: "a1",
		BarberID:      "b1",
		Status:        "pending",
		Start:         start,
		Duration:      30,
	})
	require.NoError(t, err)
	require.Equal(t, 1, calls)
	assert.Equal(t, EventAppointmentCreated, received.Type)
	assert.False(t, received.CreatedAt.IsZero())

	var decoded AppointmentEventPayload
	require.NoError(t, received.Decode(&decoded))
	assert.Equal(t, "a1", decoded.AppointmentID)
	assert.True(t, start.Equal(decoded.Start))
}

func TestEventBusMultipleSubscribers(t *testing.T) {
	bus := NewEventBus()
	var count1, count2 int

	boom := errors.New("handler failed")
	bus.Subscribe(EventWaitlistSlotOpened, func(*Event) error { count1++; return boom })
	bus.Subscribe(EventWaitlistSlotOpened, func(*Event) error { count2++; return nil })

	err := bus.Publish(&Event{Type: EventWaitlistSlotOpened})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, count1)
	assert.Equal(t, 1, count2)
}

func TestEventBusNoSubscribers(t *testing.T) {
	bus := NewEventBus()
	assert.NoError(t, bus.Publish(&Event{Type: "unknown"}))
	assert.NoError(t, bus.PublishJSON("unknown", nil))

	var nilBus *EventBus
	assert.NoError(t, nilBus.PublishJSON(EventAppointmentDeleted, nil))
}

func TestPublishJSONMarshalError(t *testing.T) {
	bus := NewEventBus()
	err := bus.PublishJSON("bad", make(chan int))
	assert.Error(t, err)
}

func TestDecodeError(t *testing.T) {
	e := &Event{Type: "x", Payload: []byte("{")}
	var v SlotOpenedPayload
	assert.Error(t, e.Decode(&v))
}
