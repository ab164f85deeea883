package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublishOrder(t *testing.T) {
	var c Channel
	var got []string

	c.Add(func(ns Namespace) { got = append(got, "a:"+string(ns)) })
	c.Add(func(ns Namespace) { got = append(got, "b:"+string(ns)) })

	c.Publish(Subscriptions)
	c.Publish(None)

	assert.Equal(t, []string{"a:subscriptions", "b:subscriptions", "a:", "b:"}, got)
}

func TestRemove(t *testing.T) {
	var c Channel
	calls := 0
	id := c.Add(func(Namespace) { calls++ })
	assert.Equal(t, 1, c.Len())

	assert.True(t, c.Remove(id))
	assert.False(t, c.Remove(id))
	c.Publish(Events)

	assert.Equal(t, 0, calls)
	assert.Equal(t, 0, c.Len())
}

func TestListenerRemovesItselfDuringPublish(t *testing.T) {
	var c Channel
	var selfID ListenerID
	var order []string

	selfID = c.Add(func(Namespace) {
		order = append(order, "self")
		c.Remove(selfID)
	})
	c.Add(func(Namespace) { order = append(order, "other") })

	c.Publish(Methods)
	c.Publish(Methods)

	assert.Equal(t, []string{"self", "other", "other"}, order)
}
