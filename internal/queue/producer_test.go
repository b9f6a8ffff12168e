package queue

import (
	"context"
	stderrors "errors"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/cache"
	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/model"
	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/testfixtures"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/snowflake"
	"github.com/RodrigoCConte/monofloor-admin-sub002/storage/mq"
)

func TestMain(m *testing.M) {
	if err := snowflake.Init(1, 1); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type sentMessage struct {
	exchange   string
	routingKey string
	messageID  string
	body       interface{}
}

type fakeBroker struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (b *fakeBroker) publish(_ context.Context, exchange, routingKey, messageID string, body interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.sent = append(b.sent, sentMessage{exchange: exchange, routingKey: routingKey, messageID: messageID, body: body})
	return nil
}

func TestEventPublisherWrapsPayload(t *testing.T) {
	broker := &fakeBroker{}
	clk := testfixtures.NewClock(testfixtures.ReferenceTime())
	p := NewEventPublisher(broker.publish, clk)

	event := model.LunchPromptEvent{WorkerID: 7, SessionID: 11, At: clk.Now()}
	require.NoError(t, p.Publish(context.Background(), model.TopicLunchPrompt, event))

	require.Len(t, broker.sent, 1)
	sent := broker.sent[0]
	assert.Equal(t, mq.EventsExchange, sent.exchange)
	assert.Equal(t, model.TopicLunchPrompt, sent.routingKey)
	assert.True(t, strings.HasPrefix(sent.messageID, "evt_"))

	msg, ok := sent.body.(model.EventMessage)
	require.True(t, ok)
	assert.Equal(t, sent.messageID, msg.MessageID)
	assert.Equal(t, model.TopicLunchPrompt, msg.EventKey)
	assert.Equal(t, "2025-03-10T08:00:00Z", msg.OccurredAt)
	assert.Equal(t, event, msg.Payload)
}

func TestEventPublisherUniqueMessageIDs(t *testing.T) {
	broker := &fakeBroker{}
	p := NewEventPublisher(broker.publish, nil)

	for i := 0; i < 3; i++ {
		require.NoError(t, p.Publish(context.Background(), model.TopicSessionClosed, nil))
	}
	require.Len(t, broker.sent, 3)
	assert.NotEqual(t, broker.sent[0].messageID, broker.sent[1].messageID)
	assert.NotEqual(t, broker.sent[1].messageID, broker.sent[2].messageID)
}

func TestEventPublisherOpensBreaker(t *testing.T) {
	broker := &fakeBroker{err: stderrors.New("channel closed")}
	p := NewEventPublisher(broker.publish, nil)
	ctx := context.Background()

	for i := 0; i < breakerMaxFailures; i++ {
		err := p.Publish(ctx, model.TopicOutOfArea, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "channel closed")
	}

	err := p.Publish(ctx, model.TopicOutOfArea, nil)
	var open *cache.ErrBreakerOpen
	require.ErrorAs(t, err, &open)
	assert.Equal(t, "event_publisher", open.Name)
}

func TestGamificationPublisherTopics(t *testing.T) {
	broker := &fakeBroker{}
	g := NewGamificationPublisher(NewEventPublisher(broker.publish, nil))
	ctx := context.Background()

	require.NoError(t, g.ApplyPenalty(ctx, 3, 20, "skipped_break"))
	require.NoError(t, g.ResetMultiplier(ctx, 3))

	require.Len(t, broker.sent, 2)
	assert.Equal(t, model.TopicGamificationPenalty, broker.sent[0].routingKey)
	assert.Equal(t, model.PenaltyEvent{WorkerID: 3, Amount: 20, Reason: "skipped_break"},
		broker.sent[0].body.(model.EventMessage).Payload)
	assert.Equal(t, model.TopicGamificationMultReset, broker.sent[1].routingKey)
	assert.Equal(t, model.MultiplierResetEvent{WorkerID: 3},
		broker.sent[1].body.(model.EventMessage).Payload)
}
