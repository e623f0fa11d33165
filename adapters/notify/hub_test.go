package notify_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"campusmart/adapters/notify"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recorder struct {
	mu     sync.Mutex
	events []int
}

func (r *recorder) handle(v int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, v)
}

func (r *recorder) snapshot() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.events...)
}

func TestHub_DeliversInOrder(t *testing.T) {
	hub := notify.NewHub[int]()
	a, b := &recorder{}, &recorder{}
	hub.Subscribe(a.handle)
	hub.Subscribe(b.handle)
	assert.Equal(t, 2, hub.Len())

	for i := 1; i <= 100; i++ {
		hub.Publish(i)
	}
	hub.Close()

	require.Len(t, a.snapshot(), 100)
	assert.Equal(t, a.snapshot(), b.snapshot())
	assert.Equal(t, 1, a.snapshot()[0])
	assert.Equal(t, 100, a.snapshot()[99])
	assert.Zero(t, hub.Len())
}

func TestHub_SlowSubscriberDoesNotBlockPublish(t *testing.T) {
	hub := notify.NewHub[int]()
	release := make(chan struct{})
	hub.Subscribe(func(int) { <-release })

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			hub.Publish(i)
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on slow subscriber")
	}
	close(release)
	hub.Close()
}

func TestHub_Unsubscribe(t *testing.T) {
	hub := notify.NewHub[int]()
	defer hub.Close()

	rec := &recorder{}
	sub := hub.Subscribe(rec.handle)
	hub.Publish(1)
	assert.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 5*time.Millisecond)

	sub.Unsubscribe()
	sub.Unsubscribe()
	hub.Publish(2)

	assert.Zero(t, hub.Len())
	assert.Equal(t, []int{1}, rec.snapshot())
}

func TestHub_UnsubscribeFromHandler(t *testing.T) {
	hub := notify.NewHub[int]()
	defer hub.Close()

	rec := &recorder{}
	var sub notify.Subscription
	ready := make(chan struct{})
	sub = hub.Subscribe(func(v int) {
		<-ready
		rec.handle(v)
		sub.Unsubscribe()
	})
	close(ready)

	hub.Publish(1)
	hub.Publish(2)
	assert.Eventually(t, func() bool { return hub.Len() == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []int{1}, rec.snapshot())
}

func TestHub_PanickingSubscriber(t *testing.T) {
	hub := notify.NewHub[int]()
	rec := &recorder{}
	hub.Subscribe(func(v int) {
		if v == 1 {
			panic("boom")
		}
	})
	hub.Subscribe(rec.handle)

	hub.Publish(1)
	hub.Publish(2)
	hub.Close()

	assert.Equal(t, []int{1, 2}, rec.snapshot())
}

func TestHub_SubscribeAfterClose(t *testing.T) {
	hub := notify.NewHub[int]()
	hub.Close()
	hub.Close()

	rec := &recorder{}
	sub := hub.Subscribe(rec.handle)
	hub.Publish(1)
	sub.Unsubscribe()

	assert.Empty(t, rec.snapshot())
	assert.Zero(t, hub.Len())
}
