package service

import (
	"context"
	"strings"
	"time"

	"ShopSage/internal/modules/assistant/application/dto/request"
	"ShopSage/internal/modules/assistant/application/dto/respond"
	"ShopSage/internal/modules/assistant/infrastructure/mq"
	"ShopSage/internal/modules/assistant/infrastructure/projector"
	"ShopSage/pkg/xerr"
)

// ChangeService 向变更主题投递记录变更
type ChangeService interface {
	Notify(ctx context.Context, req request.RecordChangedRequest) (*respond.RecordChangedRespond, error)
}

type changeServiceImpl struct {
	publisher mq.Publisher
	topic     string
	now       func() time.Time
}

// NewChangeService publisher 为 nil 表示未启用 Kafka
func NewChangeService(publisher mq.Publisher, topic string) ChangeService {
	return &changeServiceImpl{publisher: publisher, topic: topic, now: time.Now}
}

func (s *changeServiceImpl) Notify(ctx context.Context, req request.RecordChangedRequest) (*respond.RecordChangedRespond, error) {
	if s.publisher == nil {
		return nil, xerr.New(xerr.ServiceUnavailable, "change events are not enabled")
	}
	collection := strings.TrimSpace(req.Collection)
	if !projector.Supported(collection) {
		return nil, xerr.New(xerr.BadRequest, "unknown collection: "+collection)
	}
	ev := mq.ChangeEvent{Collection: collection, RecordKey: strings.TrimSpace(req.RecordKey), ChangedAt: s.now().UTC()}
	msg, err := ev.Encode(s.topic)
	if err != nil {
		return nil, xerr.Wrap(xerr.BadRequest, err.Error(), err)
	}
	res, err := s.publisher.Publish(ctx, msg)
	if err != nil {
		return nil, xerr.Wrap(xerr.ServiceUnavailable, "publish change event failed", err)
	}
	return &respond.RecordChangedRespond{Topic: s.topic, Partition: res.Partition, Offset: res.Offset}, nil
}
