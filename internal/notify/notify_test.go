package notify

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubject(t *testing.T) {
	cases := map[string]string{
		"":                "floodsense.broadcast.all",
		"  ":              "floodsense.broadcast.all",
		"Chennai":         "floodsense.broadcast.chennai",
		"North Chennai":   "floodsense.broadcast.north_chennai",
		"Kanchi.puram>*":  "floodsense.broadcast.kanchipuram",
		"Tiruvallur-West": "floodsense.broadcast.tiruvallur-west",
	}
	for in, want := range cases {
		assert.Equal(t, want, Subject(in), "district %q", in)
	}
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.PublishBroadcast(context.Background(), Broadcast{Message: "evacuate"}))
}

// Needs a running server at NATS_URL.
func TestNATS_PublishBroadcast(t *testing.T) {
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("NATS_URL not set")
	}

	sub, err := nats.Connect(url)
	require.NoError(t, err)
	defer sub.Close()

	msgs := make(chan *nats.Msg, 1)
	s, err := sub.ChanSubscribe(SubjectPrefix+"chennai", msgs)
	require.NoError(t, err)
	defer s.Unsubscribe()
	require.NoError(t, sub.Flush())

	pub, err := ConnectNATS(url)
	require.NoError(t, err)
	defer pub.Close()

	require.NoError(t, pub.PublishBroadcast(context.Background(), Broadcast{
		AlertID:  "a1",
		Message:  "Move to higher ground",
		District: "Chennai",
		SentAt:   time.Now(),
	}))

	select {
	case m := <-msgs:
		assert.Contains(t, string(m.Data), "Move to higher ground")
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast not received")
	}
}
