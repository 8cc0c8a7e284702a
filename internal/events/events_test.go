package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestType(t *testing.T) {
	assert.Equal(t, "contact.created", Type(ResourceContact, ActionCreated))
	assert.Equal(t, "project.deleted", Type(ResourceProject, ActionDeleted))
	assert.Equal(t, []string{"company.created", "company.updated", "company.deleted"}, Types(ResourceCompany))
}

func TestChannel_PublishToMatchingType(t *testing.T) {
	ch := NewChannel("contact")

	var got []Event
	sub := ch.Subscribe(func(ev Event) { got = append(got, ev) }, "contact.created")
	defer sub.Unsubscribe()

	ch.Publish(Event{Type: "contact.created", Data: map[string]string{"id": "1"}})
	ch.Publish(Event{Type: "contact.deleted"})

	require.Len(t, got, 1)
	assert.Equal(t, "contact.created", got[0].Type)
}

func TestChannel_MultipleSubscribersAllReceive(t *testing.T) {
	ch := NewChannel("company")

	var a, b int
	subA := ch.Subscribe(func(Event) { a++ }, Types(ResourceCompany)...)
	subB := ch.Subscribe(func(Event) { b++ }, Types(ResourceCompany)...)
	defer subA.Unsubscribe()
	defer subB.Unsubscribe()

	ch.Publish(Event{Type: "company.updated"})

	assert.Equal(t, 1, a)
	assert.Equal(t, 1, b)
	assert.Equal(t, 2, ch.ListenerCount("company.updated"))
}

func TestSubscription_UnsubscribeIdempotent(t *testing.T) {
	ch := NewChannel("project")

	calls := 0
	sub := ch.Subscribe(func(Event) { calls++ }, Types(ResourceProject)...)
	sub.Unsubscribe()
	sub.Unsubscribe()

	ch.Publish(Event{Type: "project.created"})
	assert.Equal(t, 0, calls)
	for _, typ := range Types(ResourceProject) {
		assert.Equal(t, 0, ch.ListenerCount(typ))
	}
}

func TestChannel_UnsubscribeDuringPublish(t *testing.T) {
	ch := NewChannel("contact")

	var sub *Subscription
	calls := 0
	sub = ch.Subscribe(func(Event) {
		calls++
		sub.Unsubscribe()
	}, "contact.created")

	ch.Publish(Event{Type: "contact.created"})
	ch.Publish(Event{Type: "contact.created"})
	assert.Equal(t, 1, calls)
}

func TestChannel_ConcurrentSubscribePublish(t *testing.T) {
	ch := NewChannel("contact")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			sub := ch.Subscribe(func(Event) {}, "contact.updated")
			sub.Unsubscribe()
		}()
		go func() {
			defer wg.Done()
			ch.Publish(Event{Type: "contact.updated"})
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, ch.ListenerCount("contact.updated"))
}

func TestHub_RoutesByResource(t *testing.T) {
	h := NewHub()

	var contacts, projects []Event
	s1 := h.Channel(ResourceContact).Subscribe(func(ev Event) { contacts = append(contacts, ev) }, Types(ResourceContact)...)
	s2 := h.Channel(ResourceProject).Subscribe(func(ev Event) { projects = append(projects, ev) }, Types(ResourceProject)...)
	defer s1.Unsubscribe()
	defer s2.Unsubscribe()

	h.Publish(ResourceContact, ActionCreated, map[string]string{"id": "c1"})
	h.Publish(ResourceCompany, ActionCreated, nil)

	require.Len(t, contacts, 1)
	assert.Equal(t, "contact.created", contacts[0].Type)
	assert.Empty(t, projects)
	assert.Nil(t, h.Channel(Resource("widget")))

	// Unknown resources are a no-op.
	h.Publish(Resource("widget"), ActionCreated, nil)
}
