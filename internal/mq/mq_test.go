package mq

import (
	"encoding/json"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/domain"
)

func TestMessage(t *testing.T) {
	job := domain.SchedulingJob{JobID: "job-1", RunID: 42, NotifyTo: "op@example.com"}

	msg, err := Message(job.JobID, job)
	require.NoError(t, err)

	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, "job-1", msg.MessageId)
	assert.False(t, msg.Timestamp.IsZero())

	var decoded domain.SchedulingJob
	require.NoError(t, json.Unmarshal(msg.Body, &decoded))
	assert.Equal(t, job, decoded)
}

func TestMessageRejectsUnencodableValue(t *testing.T) {
	_, err := Message("x", map[string]any{"ch": make(chan int)})
	assert.Error(t, err)
}
