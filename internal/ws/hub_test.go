package ws

import (
	"encoding/json"
	"testing"
)

func TestValidTopic(t *testing.T) {
	cases := []struct {
		topic string
		want  bool
	}{
		{"global", true},
		{"task:1", true},
		{"challenge:42", true},
		{"user:7", true},
		{"task:", false},
		{"task:abc", false},
		{"bogus", false},
		{"", false},
		{"task:-1", false},
	}
	for _, c := range cases {
		if got := ValidTopic(c.topic); got != c.want {
			t.Errorf("ValidTopic(%q) = %v, want %v", c.topic, got, c.want)
		}
	}
}

func TestSubscribeRejectsUnknownTopic(t *testing.T) {
	h := NewHub(nil)
	c := h.Register()
	if h.Subscribe(c, "nonsense") {
		t.Fatal("Subscribe() with an invalid topic = true, want false")
	}
}

func TestPublishDeliversToSubscriber(t *testing.T) {
	h := NewHub(nil)
	c := h.Register()
	if !h.Subscribe(c, "task:1") {
		t.Fatal("Subscribe() = false, want true")
	}

	if err := h.Publish(Event{Topic: "task:1", Type: EventTaskClaimed}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case msg := <-c.Outbox():
		var ev Event
		if err := json.Unmarshal(msg, &ev); err != nil {
			t.Fatalf("unmarshal delivered message: %v", err)
		}
		if ev.Type != EventTaskClaimed {
			t.Errorf("delivered event type = %q, want %q", ev.Type, EventTaskClaimed)
		}
	default:
		t.Fatal("subscriber received nothing")
	}
}

func TestPublishSkipsOtherTopics(t *testing.T) {
	h := NewHub(nil)
	c := h.Register()
	h.Subscribe(c, "task:1")

	h.Publish(Event{Topic: "task:2", Type: EventTaskClaimed})

	select {
	case <-c.Outbox():
		t.Fatal("subscriber to task:1 received a task:2 publish")
	default:
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	h := NewHub(nil)
	c := h.Register()
	h.Subscribe(c, "global")
	h.Unsubscribe(c, "global")

	h.Publish(Event{Topic: "global", Type: EventTaskClaimed})

	select {
	case <-c.Outbox():
		t.Fatal("unsubscribed client still received a publish")
	default:
	}
}

func TestUnregisterRemovesFromAllTopics(t *testing.T) {
	h := NewHub(nil)
	c := h.Register()
	h.Subscribe(c, "task:1")
	h.Subscribe(c, "global")

	h.Unregister(c)

	if len(h.subscribers["task:1"]) != 0 || len(h.subscribers["global"]) != 0 {
		t.Fatal("Unregister() left client in subscriber sets")
	}
}

func TestPublishDisconnectsSlowClient(t *testing.T) {
	h := NewHub(nil)
	c := h.Register()
	h.Subscribe(c, "global")

	var disconnected int64 = -1
	h.OnDisconnect(func(id int64) { disconnected = id })

	for i := 0; i < outboundBuffer+1; i++ {
		h.Publish(Event{Topic: "global", Type: EventTaskClaimed})
	}

	if disconnected != c.id {
		t.Fatalf("OnDisconnect callback client id = %d, want %d", disconnected, c.id)
	}
	if len(h.subscribers["global"]) != 0 {
		t.Fatal("slow client was not removed from subscriber set")
	}
}

func TestUnregisterIsIdempotent(t *testing.T) {
	h := NewHub(nil)
	c := h.Register()
	h.Unregister(c)
	h.Unregister(c)
}
