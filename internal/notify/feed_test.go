package notify

import (
	"testing"

	"flipradar/internal/engine"
	"flipradar/internal/models"
)

func TestFeed_DeliversToAllSubscribers(t *testing.T) {
	feed := NewFeed(4, nil)
	ch1, cancel1 := feed.Subscribe()
	defer cancel1()
	ch2, cancel2 := feed.Subscribe()
	defer cancel2()

	feed.Publish(engine.Event{Kind: engine.EventCreated, Opportunity: models.Opportunity{ID: 1}})

	for i, ch := range []<-chan engine.Event{ch1, ch2} {
		select {
		case ev := <-ch:
			if ev.Opportunity.ID != 1 {
				t.Fatalf("subscriber %d: id=%d want=1", i, ev.Opportunity.ID)
			}
		default:
			t.Fatalf("subscriber %d received nothing", i)
		}
	}
}

func TestFeed_DropsWhenSubscriberLags(t *testing.T) {
	feed := NewFeed(1, nil)
	ch, cancel := feed.Subscribe()
	defer cancel()

	feed.Publish(engine.Event{Opportunity: models.Opportunity{ID: 1}})
	feed.Publish(engine.Event{Opportunity: models.Opportunity{ID: 2}}) // buffer full, dropped

	if got := feed.Dropped(); got != 1 {
		t.Fatalf("dropped=%d want=1", got)
	}
	ev := <-ch
	if ev.Opportunity.ID != 1 {
		t.Fatalf("id=%d want=1 (oldest kept)", ev.Opportunity.ID)
	}
}

func TestFeed_CancelClosesChannel(t *testing.T) {
	feed := NewFeed(1, nil)
	ch, cancel := feed.Subscribe()
	cancel()

	if _, ok := <-ch; ok {
		t.Fatalf("channel still open after cancel")
	}

	// Publishing after cancel must not panic or deliver.
	feed.Publish(engine.Event{Opportunity: models.Opportunity{ID: 3}})
	if got := feed.Dropped(); got != 0 {
		t.Fatalf("dropped=%d want=0 after unsubscribe", got)
	}
}
