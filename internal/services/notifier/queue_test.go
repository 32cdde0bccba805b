package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/access-reconciler/internal/models"
)

type fakeChannel struct {
	keys      []string
	published []amqp.Publishing
	err       error
}

func (c *fakeChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if c.err != nil {
		return c.err
	}
	c.keys = append(c.keys, key)
	c.published = append(c.published, msg)
	return nil
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestQueue_Dispatch(t *testing.T) {
	ch := &fakeChannel{}
	q := NewQueue(ch, newNoopLogger())

	result := q.Dispatch(context.Background(), models.NotificationJob{
		MemberID: "member#1",
		Channels: []models.Channel{models.ChannelChat, models.ChannelEmail},
		Body:     "text",
	})

	assert.True(t, result.Delivered())
	require.Len(t, ch.keys, 1)
	assert.Equal(t, "member", ch.keys[0])

	var job models.NotificationJob
	require.NoError(t, json.Unmarshal(ch.published[0].Body, &job))
	assert.Equal(t, "member#1", job.MemberID)
}

func TestQueue_DispatchPublishError(t *testing.T) {
	q := NewQueue(&fakeChannel{err: errors.New("channel closed")}, newNoopLogger())

	result := q.Dispatch(context.Background(), models.NotificationJob{
		MemberID: "member#1",
		Channels: []models.Channel{models.ChannelChat},
	})

	assert.False(t, result.Delivered())
}

func TestQueue_NotifyAdmin(t *testing.T) {
	ch := &fakeChannel{}
	q := NewQueue(ch, newNoopLogger())

	require.NoError(t, q.NotifyAdmin(context.Background(), "subject", "body"))
	require.Len(t, ch.keys, 1)
	assert.Equal(t, "admin", ch.keys[0])
}
