package events

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus()

	var received *Event
	var callCount int
	bus.Subscribe(EventRequestCreated, func(event *Event) error {
		received = event
		callCount++
		return nil
	})

	require.NoError(t, bus.PublishJSON(EventRequestCreated, RequestEventPayload{RequestID: 7, Status: "pending"}))

	assert.Equal(t, 1, callCount)
	require.NotNil(t, received)
	assert.Equal(t, EventRequestCreated, received.Type)
	assert.False(t, received.CreatedAt.IsZero())

	var decoded RequestEventPayload
	require.NoError(t, json.Unmarshal(received.Payload, &decoded))
	assert.Equal(t, int64(7), decoded.RequestID)
	assert.Equal(t, "pending", decoded.Status)
}

func TestEventBusMultipleSubscribers(t *testing.T) {
	bus := NewEventBus()
	var count1, count2, all int

	bus.Subscribe("event", func(_ *Event) error { count1++; return nil })
	bus.Subscribe("event", func(_ *Event) error { count2++; return nil })
	bus.SubscribeAll(func(_ *Event) error { all++; return nil })

	bus.Publish(&Event{Type: "event"})
	bus.Publish(&Event{Type: "other"})

	assert.Equal(t, 1, count1)
	assert.Equal(t, 1, count2)
	assert.Equal(t, 2, all)
}

func TestEventBusNilAndEmpty(t *testing.T) {
	var nilBus *EventBus
	assert.NoError(t, nilBus.PublishJSON("x", nil))

	bus := NewEventBus()
	bus.Publish(&Event{Type: "unknown"})
	assert.NoError(t, bus.PublishJSON("unknown", nil))
	assert.Error(t, bus.PublishJSON("bad", make(chan int)))
}

type fakePublisher struct {
	subjects []string
	data     [][]byte
	err      error
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.subjects = append(f.subjects, subject)
	f.data = append(f.data, data)
	return nil
}

func TestNATSBridge(t *testing.T) {
	pub := &fakePublisher{}
	bridge := NewNATSBridge(pub, "muadati.", nil)
	bus := NewEventBus()
	bridge.Attach(bus)

	require.NoError(t, bus.PublishJSON(EventRequestAccepted, RequestEventPayload{RequestID: 3}))
	require.NoError(t, bus.PublishJSON(EventEquipmentDeleted, EquipmentEventPayload{EquipmentID: 4}))

	assert.Equal(t, []string{"muadati.request.accepted", "muadati.equipment.deleted"}, pub.subjects)

	var decoded RequestEventPayload
	require.NoError(t, json.Unmarshal(pub.data[0], &decoded))
	assert.Equal(t, int64(3), decoded.RequestID)
}

func TestNATSBridge_Error(t *testing.T) {
	pub := &fakePublisher{err: errors.New("disconnected")}
	bridge := NewNATSBridge(pub, "", nil)

	assert.Equal(t, "request.created", bridge.Subject(EventRequestCreated))
	assert.Error(t, bridge.Handle(&Event{Type: EventRequestCreated}))
}
