package kafka

import (
	"testing"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
)

func TestToMessage(t *testing.T) {
	m := &sarama.ConsumerMessage{
		Topic: "shopsage.record-changes",
		Key:   []byte("inventories"),
		Value: []byte(`{"collection":"inventories"}`),
		Headers: []*sarama.RecordHeader{
			{Key: []byte("source"), Value: []byte("pos")},
			nil,
			{Key: nil, Value: []byte("skip")},
		},
	}
	msg := toMessage(m)
	assert.Equal(t, "shopsage.record-changes", msg.Topic)
	assert.Equal(t, []byte("inventories"), msg.Key)
	assert.Equal(t, map[string]string{"source": "pos"}, msg.Headers)
}

func TestNewConsumer_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  ConsumerConfig
	}{
		{"no brokers", ConsumerConfig{GroupID: "g", Topics: []string{"t"}}},
		{"no group", ConsumerConfig{Brokers: []string{"localhost:9092"}, Topics: []string{"t"}}},
		{"no topics", ConsumerConfig{Brokers: []string{"localhost:9092"}, GroupID: "g"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConsumer(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestTopicDetail(t *testing.T) {
	td := topicDetail(0, 0)
	assert.Equal(t, int32(1), td.NumPartitions)
	assert.Equal(t, int16(1), td.ReplicationFactor)
	assert.Equal(t, "compact,delete", *td.ConfigEntries["cleanup.policy"])
	assert.Equal(t, "604800000", *td.ConfigEntries["retention.ms"])

	td = topicDetail(3, 2)
	assert.Equal(t, int32(3), td.NumPartitions)
	assert.Equal(t, int16(2), td.ReplicationFactor)
}

func TestNewPublisher_Validation(t *testing.T) {
	_, err := NewPublisher(PublisherConfig{Topic: "shopsage.record-changes"})
	assert.EqualError(t, err, "kafka brokers is empty")
}
