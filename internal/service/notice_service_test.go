package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"catalog-lens/internal/pkg/logger"
	"catalog-lens/pkg/capture"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sinkRecorder struct {
	mu     sync.Mutex
	frames [][]byte
}

func (s *sinkRecorder) Broadcast(data []byte) {
	s.mu.Lock()
	s.frames = append(s.frames, data)
	s.mu.Unlock()
}

func (s *sinkRecorder) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func TestNoticesReachSink(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	sink := &sinkRecorder{}
	require.NoError(t, NewNoticeConsumer(pubSub, sink, logger.NewNop()).Consume(ctx))

	w := capture.NewWorkflow(capture.Options{Notifier: NewNoticePublisher(pubSub, logger.NewNop())})
	assert.ErrorIs(t, w.Search(ctx), capture.ErrNoImage)

	require.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, 5*time.Millisecond)

	var frame struct {
		Type string         `json:"type"`
		Data capture.Notice `json:"data"`
	}
	sink.mu.Lock()
	require.NoError(t, json.Unmarshal(sink.frames[0], &frame))
	sink.mu.Unlock()
	assert.Equal(t, "notice", frame.Type)
	assert.Equal(t, capture.ErrNoImage.Code, frame.Data.Code)
	assert.Equal(t, w.ID(), frame.Data.WorkflowID)
}
