package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDispatcherDeliversToSubscribers(t *testing.T) {
	d := NewInMemoryDispatcher()

	var seen []Event
	d.Subscribe(EventTicketCreated, func(ctx context.Context, e Event) error {
		seen = append(seen, e)
		return nil
	})
	d.Subscribe(EventTicketClosed, func(ctx context.Context, e Event) error {
		t.Fatal("wrong event type delivered")
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventTicketCreated, TicketID: "t-1"})
	assert.NoError(t, err)
	assert.Len(t, seen, 1)
	assert.Equal(t, "t-1", seen[0].TicketID)
}

func TestDispatcherSwallowsHandlerErrors(t *testing.T) {
	d := NewInMemoryDispatcher()

	calls := 0
	d.Subscribe(EventTicketClosed, func(ctx context.Context, e Event) error {
		calls++
		return errors.New("sink down")
	})
	d.Subscribe(EventTicketClosed, func(ctx context.Context, e Event) error {
		calls++
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventTicketClosed})
	assert.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDispatcherNoSubscribers(t *testing.T) {
	d := NewInMemoryDispatcher()
	assert.NoError(t, d.Publish(context.Background(), Event{Type: EventTicketResolved}))
}
