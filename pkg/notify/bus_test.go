package notify

import (
	"testing"
	"time"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	bus := NewBus(4)

	ch1, cancel1 := bus.Subscribe()
	ch2, cancel2 := bus.Subscribe()
	defer cancel1()
	defer cancel2()

	sent := bus.Success("bet placed")
	if sent.ID == "" {
		t.Error("notification should carry an id")
	}

	for i, ch := range []<-chan Notification{ch1, ch2} {
		select {
		case got := <-ch:
			if got.ID != sent.ID || got.Message != "bet placed" || got.Level != LevelSuccess {
				t.Errorf("subscriber %d got wrong notification: %+v", i, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d did not receive", i)
		}
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus(4)

	ch, cancel := bus.Subscribe()
	cancel()

	if bus.SubscriberCount() != 0 {
		t.Error("subscription should be removed")
	}

	// Channel is closed after cancel.
	if _, open := <-ch; open {
		t.Error("channel should be closed")
	}

	// Double cancel is a no-op.
	cancel()
}

func TestUniqueIDs(t *testing.T) {
	bus := NewBus(4)
	a := bus.Info("one")
	b := bus.Info("two")
	if a.ID == b.ID {
		t.Error("notifications should have distinct ids")
	}
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	bus := NewBus(1)

	_, cancel := bus.Subscribe() // never drained
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			bus.Warning("flood")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}
