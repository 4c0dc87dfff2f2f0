package kafka

import (
	"context"
	"errors"
	"strings"
	"time"

	"ShopSage/internal/modules/assistant/infrastructure/mq"
	"ShopSage/pkg/zlog"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

type ConsumerConfig struct {
	Brokers  []string
	GroupID  string
	Topics   []string
	ClientID string
	// FromOldest 新消费组从最早的 offset 开始
	FromOldest bool
}

type saramaConsumer struct {
	cg     sarama.ConsumerGroup
	topics []string
	retry  time.Duration
}

func NewConsumer(cfg ConsumerConfig) (mq.Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers is empty")
	}
	if strings.TrimSpace(cfg.GroupID) == "" {
		return nil, errors.New("kafka consumer group id is empty")
	}
	if len(cfg.Topics) == 0 {
		return nil, errors.New("kafka topics is empty")
	}

	sc := sarama.NewConfig()
	sc.Version = sarama.V2_8_0_0
	sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	if cfg.FromOldest {
		sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	}
	sc.Consumer.Group.Rebalance.Timeout = 30 * time.Second
	sc.Consumer.Group.Session.Timeout = 30 * time.Second
	sc.ClientID = strings.TrimSpace(cfg.ClientID)

	cg, err := sarama.NewConsumerGroup(cfg.Brokers, strings.TrimSpace(cfg.GroupID), sc)
	if err != nil {
		return nil, err
	}
	return &saramaConsumer{cg: cg, topics: cfg.Topics, retry: 2 * time.Second}, nil
}

// Run 阻塞直到 ctx 取消；Consume 出错时等待后重试
func (c *saramaConsumer) Run(ctx context.Context, handler mq.Handler) error {
	if handler == nil {
		return errors.New("handler is nil")
	}
	h := &consumerGroupHandler{h: handler}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.cg.Consume(ctx, c.topics, h); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			zlog.Warn("kafka consume failed, retrying", zap.Strings("topics", c.topics), zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retry):
			}
		}
	}
}

func (c *saramaConsumer) Close() error {
	if c == nil || c.cg == nil {
		return nil
	}
	return c.cg.Close()
}

type consumerGroupHandler struct {
	h mq.Handler
}

func (consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim 处理成功才提交 offset
func (h *consumerGroupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for m := range claim.Messages() {
		msg := toMessage(m)
		if err := h.h.Handle(sess.Context(), msg); err != nil {
			zlog.Warn("kafka message handle failed",
				zap.String("topic", m.Topic),
				zap.Int32("partition", m.Partition),
				zap.Int64("offset", m.Offset),
				zap.Error(err))
			continue
		}
		sess.MarkMessage(m, "")
	}
	return nil
}

func toMessage(m *sarama.ConsumerMessage) mq.Message {
	msg := mq.Message{Topic: m.Topic, Key: m.Key, Value: m.Value}
	for _, hdr := range m.Headers {
		if hdr == nil || len(hdr.Key) == 0 {
			continue
		}
		if msg.Headers == nil {
			msg.Headers = make(map[string]string, len(m.Headers))
		}
		msg.Headers[string(hdr.Key)] = string(hdr.Value)
	}
	return msg
}
