package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/MrEthical07/authgate"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func newPubSub(t *testing.T) *gochannel.GoChannel {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	ps := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 8}, NewLogrusAdapter(log))
	t.Cleanup(func() { _ = ps.Close() })
	return ps
}

func TestPublishDeliversJSONEvent(t *testing.T) {
	ps := newPubSub(t)
	pub := NewPublisher(ps, "")

	msgs, err := ps.Subscribe(context.Background(), "authgate.auth.logout_all")
	require.NoError(t, err)

	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	require.NoError(t, pub.Publish(context.Background(), authgate.Event{
		Type:      authgate.EventLogoutAll,
		AccountID: "acct-1",
		Version:   3,
		At:        at,
	}))

	select {
	case msg := <-msgs:
		msg.Ack()
		require.Equal(t, string(authgate.EventLogoutAll), msg.Metadata.Get("event_type"))
		require.NotEmpty(t, msg.UUID)

		var got authgate.Event
		require.NoError(t, json.Unmarshal(msg.Payload, &got))
		require.Equal(t, "acct-1", got.AccountID)
		require.Equal(t, int64(3), got.Version)
		require.True(t, got.At.Equal(at))
	case <-time.After(2 * time.Second):
		t.Fatal("no message delivered")
	}
}

func TestTopicUsesPrefix(t *testing.T) {
	pub := NewPublisher(nil, "tenant-a")
	require.Equal(t, "tenant-a.account.registered", pub.Topic(authgate.EventRegistered))
}

type brokenPublisher struct{}

func (brokenPublisher) Publish(string, ...*message.Message) error { return errors.New("broker down") }
func (brokenPublisher) Close() error                             { return nil }

func TestPublishWrapsBrokerError(t *testing.T) {
	pub := NewPublisher(brokenPublisher{}, "")
	err := pub.Publish(context.Background(), authgate.Event{Type: authgate.EventLogout, AccountID: "acct-1"})
	require.ErrorContains(t, err, "broker down")
}
