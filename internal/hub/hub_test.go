package hub

import "testing"

func newTestClient(id string, sub Subscription) *Client {
	return &Client{ID: id, Send: make(chan []byte, 4), Subscription: sub}
}

func drain(client *Client) []string {
	var messages []string
	for {
		select {
		case msg := <-client.Send:
			messages = append(messages, string(msg))
		default:
			return messages
		}
	}
}

func TestBroadcastMatchesSubscription(t *testing.T) {
	h := New()

	all := newTestClient("all", Subscription{})
	window2 := newTestClient("window2", Subscription{Topic: "ticket", Window: 2})
	settingsOnly := newTestClient("settings", Subscription{Topic: "settings"})
	h.Register(all)
	h.Register(window2)
	h.Register(settingsOnly)

	h.Broadcast([]byte("ticket-w1"), Meta{Topic: "ticket", Window: 1})
	h.Broadcast([]byte("ticket-w2"), Meta{Topic: "ticket", Window: 2})
	h.Broadcast([]byte("settings"), Meta{Topic: "settings"})

	if got := drain(all); len(got) != 3 {
		t.Fatalf("unfiltered client got %d messages, want 3", len(got))
	}
	if got := drain(window2); len(got) != 1 || got[0] != "ticket-w2" {
		t.Fatalf("window2 client got %v, want only ticket-w2", got)
	}
	if got := drain(settingsOnly); len(got) != 1 || got[0] != "settings" {
		t.Fatalf("settings client got %v, want only settings", got)
	}
}

func TestBroadcastWindowlessEventReachesWindowSubscribers(t *testing.T) {
	h := New()
	client := newTestClient("c", Subscription{Topic: "queue", Window: 3})
	h.Register(client)

	// Events without a window, like a reset, go to every window subscriber.
	h.Broadcast([]byte("reset"), Meta{Topic: "queue"})

	if got := drain(client); len(got) != 1 {
		t.Fatalf("got %v, want the reset event", got)
	}
}

func TestUnregisterClosesSend(t *testing.T) {
	h := New()
	client := newTestClient("c", Subscription{})
	h.Register(client)
	h.Unregister(client)

	if _, ok := <-client.Send; ok {
		t.Fatal("send channel must be closed after unregister")
	}

	h.Broadcast([]byte("late"), Meta{Topic: "ticket"})
}

func TestUpdateSubscription(t *testing.T) {
	h := New()
	client := newTestClient("c", Subscription{Topic: "ticket", Window: 1})
	h.Register(client)

	h.UpdateSubscription(client, Subscription{})
	h.Broadcast([]byte("ticket-w2"), Meta{Topic: "ticket", Window: 2})

	if got := drain(client); len(got) != 1 {
		t.Fatalf("after unsubscribe to wildcard got %v, want the message", got)
	}
}

func TestParseSubscribe(t *testing.T) {
	msg, ok := ParseSubscribe([]byte(`{"action":"subscribe","topic":"ticket","window":2}`))
	if !ok || msg.Topic != "ticket" || msg.Window != 2 {
		t.Fatalf("parse failed: %+v ok=%v", msg, ok)
	}

	if _, ok := ParseSubscribe([]byte(`{"action":"noop"}`)); ok {
		t.Fatal("unknown action must not parse")
	}
	if _, ok := ParseSubscribe([]byte(`not-json`)); ok {
		t.Fatal("invalid JSON must not parse")
	}
}
