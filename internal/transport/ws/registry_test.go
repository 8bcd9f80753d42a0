package ws

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestRegistryJoinLeave(t *testing.T) {
	h := NewHub(zap.NewNop())
	r := h.Registry()
	a := NewClient(h, nil, uuid.New())
	b := NewClient(h, nil, uuid.New())

	assert.True(t, r.Join(a, "room"))
	assert.False(t, r.Join(a, "room"))
	assert.True(t, r.Join(b, "room"))
	assert.True(t, r.Join(a, "other"))

	assert.Len(t, r.Members("room"), 2)
	assert.ElementsMatch(t, []string{"room", "other"}, r.RoomsOf(a))

	r.Leave(a, "room")
	assert.Equal(t, []*Client{b}, r.Members("room"))

	r.Leave(b, "room")
	assert.Empty(t, r.Members("room"))
	assert.Equal(t, 1, r.Len())
}

func TestRegistryDropIsIdempotent(t *testing.T) {
	h := NewHub(zap.NewNop())
	r := h.Registry()
	a := NewClient(h, nil, uuid.New())
	b := NewClient(h, nil, uuid.New())

	r.Join(a, "u")
	r.Join(a, "c1")
	r.Join(a, "c2")
	r.Join(b, "c1")

	r.Drop(a)
	r.Drop(a)

	assert.Empty(t, r.RoomsOf(a))
	assert.Empty(t, r.Members("u"))
	assert.Equal(t, []*Client{b}, r.Members("c1"))
	assert.Equal(t, 1, r.Len())
}

func TestRegistryConcurrentAccess(t *testing.T) {
	h := NewHub(zap.NewNop())
	r := h.Registry()

	var wg sync.WaitGroup
	clients := make([]*Client, 32)
	for i := range clients {
		clients[i] = NewClient(h, nil, uuid.New())
	}

	for i, c := range clients {
		wg.Add(1)
		go func(i int, c *Client) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				room := fmt.Sprintf("room-%d", j%5)
				r.Join(c, room)
				_ = r.Members(room)
				if j%3 == 0 {
					r.Leave(c, room)
				}
			}
			if i%2 == 0 {
				r.Drop(c)
			}
		}(i, c)
	}
	wg.Wait()

	for i, c := range clients {
		if i%2 == 0 {
			assert.Empty(t, r.RoomsOf(c))
		}
	}
}
