package kafka

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"ShopSage/internal/modules/assistant/infrastructure/mq"
	"ShopSage/pkg/zlog"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// PublisherConfig Topic 非空时启动前确保变更主题存在
type PublisherConfig struct {
	Brokers           []string
	ClientID          string
	Topic             string
	Partitions        int32
	ReplicationFactor int16
}

// 变更消息只需保留 7 天；key 为集合名，compact 后每个集合留最近一条
const changeRetention = 7 * 24 * time.Hour

type saramaPublisher struct {
	p sarama.SyncProducer
}

func NewPublisher(cfg PublisherConfig) (mq.Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers is empty")
	}

	sc := sarama.NewConfig()
	sc.Version = sarama.V2_8_0_0
	sc.Producer.Return.Successes = true
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Retry.Max = 5
	sc.Producer.Retry.Backoff = 100 * time.Millisecond
	// 同一集合的变更落在同一分区
	sc.Producer.Partitioner = sarama.NewHashPartitioner
	sc.ClientID = strings.TrimSpace(cfg.ClientID)

	if topic := strings.TrimSpace(cfg.Topic); topic != "" {
		// 建主题失败不阻止启动，可能由运维预先创建
		if err := ensureTopic(cfg.Brokers, sc, topic, topicDetail(cfg.Partitions, cfg.ReplicationFactor)); err != nil {
			zlog.Warn("ensure kafka topic failed", zap.String("topic", topic), zap.Error(err))
		}
	}

	p, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, err
	}
	return &saramaPublisher{p: p}, nil
}

func (s *saramaPublisher) Publish(ctx context.Context, msg mq.Message) (mq.PublishResult, error) {
	if err := ctx.Err(); err != nil {
		return mq.PublishResult{}, err
	}
	if strings.TrimSpace(msg.Topic) == "" {
		return mq.PublishResult{}, errors.New("kafka topic is empty")
	}
	m := &sarama.ProducerMessage{
		Topic: msg.Topic,
		Key:   sarama.ByteEncoder(msg.Key),
		Value: sarama.ByteEncoder(msg.Value),
	}
	for k, v := range msg.Headers {
		if kk := strings.TrimSpace(k); kk != "" {
			m.Headers = append(m.Headers, sarama.RecordHeader{Key: []byte(kk), Value: []byte(v)})
		}
	}
	partition, offset, err := s.p.SendMessage(m)
	if err != nil {
		return mq.PublishResult{}, err
	}
	return mq.PublishResult{Partition: partition, Offset: offset}, nil
}

func (s *saramaPublisher) Close() error {
	if s == nil || s.p == nil {
		return nil
	}
	return s.p.Close()
}

func topicDetail(partitions int32, replicationFactor int16) *sarama.TopicDetail {
	if partitions <= 0 {
		partitions = 1
	}
	if replicationFactor <= 0 {
		replicationFactor = 1
	}
	retention := strconv.FormatInt(changeRetention.Milliseconds(), 10)
	policy := "compact,delete"
	return &sarama.TopicDetail{
		NumPartitions:     partitions,
		ReplicationFactor: replicationFactor,
		ConfigEntries: map[string]*string{
			"retention.ms":   &retention,
			"cleanup.policy": &policy,
		},
	}
}

func ensureTopic(brokers []string, sc *sarama.Config, topic string, td *sarama.TopicDetail) error {
	admin, err := sarama.NewClusterAdmin(brokers, sc)
	if err != nil {
		return err
	}
	defer admin.Close()

	topics, err := admin.ListTopics()
	if err != nil {
		return err
	}
	if _, ok := topics[topic]; ok {
		return nil
	}
	if err := admin.CreateTopic(topic, td, false); err != nil && !errors.Is(err, sarama.ErrTopicAlreadyExists) {
		return err
	}
	return nil
}
