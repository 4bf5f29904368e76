package broadcast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBroadcastServer_FanOut(t *testing.T) {
	source := make(chan int)
	b := NewBroadcastServer("test", source)
	defer b.Close()

	first := b.Subscribe()
	second := b.Subscribe()

	go func() { source <- 42 }()

	for _, ch := range []<-chan int{first, second} {
		select {
		case v := <-ch:
			assert.Equal(t, 42, v)
		case <-time.After(time.Second):
			t.Fatal("listener did not receive message")
		}
	}
}

func TestBroadcastServer_CancelSubscription(t *testing.T) {
	source := make(chan int)
	b := NewBroadcastServer("test", source)
	defer b.Close()

	ch := b.Subscribe()
	b.CancelSubscription(ch)
	// channel is closed on removal
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription was not cancelled")
	}
}
