package mq

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

type Message struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers map[string]string
}

type PublishResult struct {
	Partition int32
	Offset    int64
}

type Publisher interface {
	Publish(ctx context.Context, msg Message) (PublishResult, error)
	Close() error
}

type Handler interface {
	Handle(ctx context.Context, msg Message) error
}

type Consumer interface {
	Run(ctx context.Context, handler Handler) error
	Close() error
}

// ChangeEvent 运营库记录变更通知，消息体为 JSON
type ChangeEvent struct {
	Collection string    `json:"collection"`
	RecordKey  string    `json:"record_key,omitempty"`
	ChangedAt  time.Time `json:"changed_at"`
}

var ErrEmptyCollection = errors.New("change event without collection")

// Encode key 为集合名
func (e ChangeEvent) Encode(topic string) (Message, error) {
	if strings.TrimSpace(e.Collection) == "" {
		return Message{}, ErrEmptyCollection
	}
	b, err := json.Marshal(e)
	if err != nil {
		return Message{}, err
	}
	return Message{Topic: topic, Key: []byte(e.Collection), Value: b}, nil
}

// DecodeChangeEvent 消息体不是 JSON 时退回到 key 作为集合名
func DecodeChangeEvent(msg Message) (ChangeEvent, error) {
	var ev ChangeEvent
	if len(msg.Value) > 0 {
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			ev = ChangeEvent{}
		}
	}
	if strings.TrimSpace(ev.Collection) == "" {
		ev.Collection = string(msg.Key)
	}
	ev.Collection = strings.TrimSpace(ev.Collection)
	if ev.Collection == "" {
		return ChangeEvent{}, ErrEmptyCollection
	}
	return ev, nil
}
