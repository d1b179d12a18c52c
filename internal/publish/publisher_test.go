package publish

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/neuroadapt/internal/features"
	"github.com/danielpatrickdp/neuroadapt/internal/outcome"
	"github.com/danielpatrickdp/neuroadapt/internal/session"
	"github.com/danielpatrickdp/neuroadapt/internal/signal"
	"github.com/danielpatrickdp/neuroadapt/internal/update"
)

// startTestNATSServer starts an embedded NATS server for testing.
func startTestNATSServer(t *testing.T) *natsserver.Server {
	opts := &natsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1, // Random port
		NoLog:  true,
		NoSigs: true,
	}

	server, err := natsserver.NewServer(opts)
	require.NoError(t, err)

	go server.Start()

	if !server.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}

	t.Cleanup(func() {
		server.Shutdown()
		server.WaitForShutdown()
	})

	return server
}

func TestPublisher_Subject(t *testing.T) {
	assert.Equal(t, "neuroadapt.cycles.s1", NewPublisher(nil, "", nil).Subject("s1"))
	assert.Equal(t, "lab.eeg.s1", NewPublisher(nil, "lab.eeg.", nil).Subject("s1"))
}

func TestPublisher_PublishesEachCycle(t *testing.T) {
	server := startTestNATSServer(t)

	pub, err := Connect(server.ClientURL(), "", nil)
	require.NoError(t, err)
	defer pub.Close()

	sub, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	defer sub.Close()

	ch := make(chan *nats.Msg, 4)
	s, err := sub.ChanSubscribe("neuroadapt.cycles.s1", ch)
	require.NoError(t, err)
	defer s.Unsubscribe()
	require.NoError(t, sub.Flush())

	pipeline, err := session.DefaultPipeline(nil)
	require.NoError(t, err)
	sess, err := session.New("s1", session.Deps{Pipeline: pipeline, Recorders: []session.Recorder{pub}})
	require.NoError(t, err)

	samples := make([]float64, features.DefaultConfig().BufferLength)
	for i := range samples {
		samples[i] = 0.1 * float64(i%7)
	}
	res, err := sess.RunCycle(context.Background(), session.CycleInput{
		Buffer:      signal.NewBuffer(samples),
		Scalars:     features.Scalars{InputComplexity: 0.5, TypingSpeed: 0.5},
		Interaction: update.InteractionSummary{Complexity: 0.8, WordCount: 60},
		Content:     outcome.ContentAnalysis{Clarity: 0.7, Structure: 0.5},
	})
	require.NoError(t, err)

	select {
	case msg := <-ch:
		var snap Snapshot
		require.NoError(t, json.Unmarshal(msg.Data, &snap))
		assert.Equal(t, "s1", snap.SessionID)
		assert.Equal(t, res.VersionID, snap.VersionID)
		assert.Equal(t, 1, snap.Cycle)
		assert.Equal(t, res.Traits, snap.Traits)
		assert.Equal(t, res.Outcomes, snap.Record.Outcomes)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for snapshot")
	}
}

func TestPublisher_ClosedConnection(t *testing.T) {
	server := startTestNATSServer(t)

	nc, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	nc.Close()

	pub := NewPublisher(nc, "", nil)
	err = pub.Record(context.Background(), session.CycleEvent{})
	assert.Error(t, err)
}
