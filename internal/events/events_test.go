package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/alfredjeanlab/lensdesk/internal/model"
)

func TestSessionTopic(t *testing.T) {
	for _, tc := range []struct {
		kind model.SessionChangeKind
		want string
	}{
		{model.SessionSignedIn, TopicSessionSignedIn},
		{model.SessionSignedOut, TopicSessionSignedOut},
		{model.SessionRefreshed, TopicSessionRefreshed},
		{model.SessionExpired, TopicSessionExpired},
	} {
		if got := SessionTopic(tc.kind); got != tc.want {
			t.Errorf("SessionTopic(%q) = %q, want %q", tc.kind, got, tc.want)
		}
		if !MatchTopic(TopicSessionAll, SessionTopic(tc.kind)) {
			t.Errorf("%q should match %q", TopicSessionAll, SessionTopic(tc.kind))
		}
	}
}

func TestNATSPublisher_ImplementsPublisher(t *testing.T) {
	var _ Publisher = (*NATSPublisher)(nil)
}

func TestNATSPublisher_Publish(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	// Subscribe to capture published messages.
	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connecting subscriber: %v", err)
	}
	defer nc.Close()

	ch := make(chan *nats.Msg, 1)
	sub, err := nc.ChanSubscribe(TopicSessionSignedOut, ch)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer sub.Unsubscribe() //nolint:errcheck
	nc.Flush()

	event := SessionChanged{Kind: model.SessionSignedOut, SessionID: "ses-pub1", UserID: "u-1", At: time.Now()}
	if err := pub.Publish(context.Background(), TopicSessionSignedOut, event); err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	pub.conn.Flush()

	select {
	case msg := <-ch:
		var got SessionChanged
		if err := json.Unmarshal(msg.Data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.SessionID != "ses-pub1" || got.Kind != model.SessionSignedOut {
			t.Errorf("got %+v", got)
		}
		if got.Session != nil {
			t.Errorf("sign-out should carry no session, got %+v", got.Session)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published message")
	}
}

func TestNATSPublisher_PublishMultipleTopics(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connecting subscriber: %v", err)
	}
	defer nc.Close()

	ch := make(chan *nats.Msg, 4)
	sub, err := nc.ChanSubscribe("lensdesk.>", ch)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer sub.Unsubscribe() //nolint:errcheck
	nc.Flush()

	for _, tc := range []struct {
		topic string
		event any
	}{
		{TopicSessionSignedIn, SessionChanged{Kind: model.SessionSignedIn, SessionID: "ses-1"}},
		{TopicSessionRefreshed, SessionChanged{Kind: model.SessionRefreshed, SessionID: "ses-1"}},
		{TopicConsultationCreated, ConsultationCreated{Customer: &model.Customer{ID: "c-1"}}},
		{TopicConsultationUpdated, ConsultationUpdated{Request: &model.ConsultationRequest{ID: "r-1"}}},
	} {
		if err := pub.Publish(context.Background(), tc.topic, tc.event); err != nil {
			t.Fatalf("Publish(%s): %v", tc.topic, err)
		}
	}
	pub.conn.Flush()

	for i := 0; i < 4; i++ {
		select {
		case <-ch:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for message %d", i)
		}
	}
}

func TestNATSPublisher_CanceledContext(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := pub.Publish(ctx, TopicSessionSignedIn, SessionChanged{}); err == nil {
		t.Error("expected error publishing with a canceled context")
	}
}

func TestNATSPublisher_Close(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}

	if err := pub.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	// Publishing after close should fail.
	err = pub.Publish(context.Background(), TopicSessionSignedIn, SessionChanged{})
	if err == nil {
		t.Error("expected error publishing after close")
	}
}
