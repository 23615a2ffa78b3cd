package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"class_forum/internal/config"
	"class_forum/internal/model"
)

func TestNewSender_WithoutBrokersLogs(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	sender, closeSender := newSender(config.KafkaConfig{Topic: "forum.notifications"}, log)
	defer closeSender()

	err := sender(context.Background(), &model.NotificationOutbox{NotificationID: 3, UserID: 9, Payload: `{"type":"comment"}`})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "no kafka brokers configured")
	assert.Contains(t, buf.String(), `"notification_id":3`)
}

func TestNewSender_WithBrokersClosesProducer(t *testing.T) {
	// kafka.Writer 惰性建连，构造与关闭都不需要真实 broker
	sender, closeSender := newSender(config.KafkaConfig{Brokers: []string{"127.0.0.1:9"}, Topic: "t"}, zerolog.Nop())
	assert.NotNil(t, sender)
	assert.NotPanics(t, closeSender)
}
