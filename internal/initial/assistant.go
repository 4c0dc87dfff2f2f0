package initial

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ShopSage/internal/config"
	"ShopSage/internal/modules/assistant/application/service"
	"ShopSage/internal/modules/assistant/domain/apperr"
	"ShopSage/internal/modules/assistant/domain/repository"
	"ShopSage/internal/modules/assistant/infrastructure/chunking"
	"ShopSage/internal/modules/assistant/infrastructure/embedding"
	"ShopSage/internal/modules/assistant/infrastructure/fusion"
	"ShopSage/internal/modules/assistant/infrastructure/graphdb"
	"ShopSage/internal/modules/assistant/infrastructure/keyword"
	"ShopSage/internal/modules/assistant/infrastructure/llm"
	"ShopSage/internal/modules/assistant/infrastructure/memory"
	"ShopSage/internal/modules/assistant/infrastructure/mq"
	"ShopSage/internal/modules/assistant/infrastructure/mq/kafka"
	"ShopSage/internal/modules/assistant/infrastructure/persistence"
	"ShopSage/internal/modules/assistant/infrastructure/pipeline"
	"ShopSage/internal/modules/assistant/infrastructure/semantic"
	"ShopSage/internal/modules/assistant/infrastructure/vectordb"
	"ShopSage/internal/modules/assistant/interface/event"
	"ShopSage/internal/modules/assistant/interface/scheduler"
	"ShopSage/pkg/util/myjwt"
	"ShopSage/pkg/zlog"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"
)

// Assistant 进程内全部组件；由 main 创建，Close 时按创建的逆序释放
type Assistant struct {
	Conf *config.Config

	AskSvc    service.AskService
	IndexSvc  service.IndexService
	GraphSvc  service.GraphService
	ChangeSvc service.ChangeService
	// Signer 未配置 jwtConfig.key 时为 nil，管理接口随之关闭
	Signer *myjwt.Signer

	scheduler *scheduler.SchedulerManager
	changes   *event.ChangeHandler
	consumer  mq.Consumer
	cancel    context.CancelFunc
	closers   []func(context.Context) error
}

// NewRecordSource 按 storeConfig.driver 打开运营库
func NewRecordSource(ctx context.Context, conf *config.Config) (repository.RecordSource, func(context.Context) error, error) {
	switch strings.ToLower(strings.TrimSpace(conf.StoreConfig.Driver)) {
	case "", "mongo", "mongodb":
		client, db, err := NewMongoDatabase(ctx, conf)
		if err != nil {
			return nil, nil, err
		}
		return persistence.NewMongoRecordSource(db, conf.TimestampField), client.Disconnect, nil
	case "mysql":
		db, err := NewGormDB(conf)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func(context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		}
		return persistence.NewGormRecordSource(db, conf.TimestampField), closeFn, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver: %s", conf.StoreConfig.Driver)
	}
}

// NewVectorStore 按 vectorConfig.backend 打开语义索引后端
func NewVectorStore(ctx context.Context, conf *config.Config, dim int) (repository.VectorStore, func(context.Context) error, error) {
	vc := conf.VectorConfig
	switch strings.ToLower(strings.TrimSpace(vc.Backend)) {
	case "", "chromem":
		store, err := vectordb.NewChromemStore(vc.Path, vc.Compress, vc.CollectionName)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	case "milvus":
		cli, err := NewMilvusClient(ctx, conf)
		if err != nil {
			return nil, nil, fmt.Errorf("connect milvus: %w", err)
		}
		collection := conf.MilvusConfig.CollectionName
		if collection == "" {
			collection = vc.CollectionName
		}
		store, err := vectordb.NewMilvusStore(cli, collection, dim, entity.MetricType(strings.ToUpper(conf.MilvusConfig.MetricType)))
		if err != nil {
			_ = cli.Close()
			return nil, nil, err
		}
		if err := store.EnsureCollection(ctx); err != nil {
			_ = cli.Close()
			return nil, nil, fmt.Errorf("ensure milvus collection: %w", err)
		}
		return store, func(context.Context) error { return cli.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown vector backend: %s", vc.Backend)
	}
}

// NewSemanticManager 按配置组装 embedder、向量库、切分器与 manifest
func NewSemanticManager(ctx context.Context, conf *config.Config) (*semantic.Manager, func(context.Context) error, error) {
	embedder, meta, err := embedding.NewEmbedderFromConfig(ctx, conf)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: embedder: %v", apperr.ErrIndexUnavailable, err)
	}
	store, closeStore, err := NewVectorStore(ctx, conf, meta.Dim)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", apperr.ErrIndexUnavailable, err)
	}

	window, perr := time.ParseDuration(conf.VectorConfig.RefreshWindow)
	if perr != nil {
		zlog.Warn("invalid refreshWindow, using 1h", zap.String("value", conf.VectorConfig.RefreshWindow))
		window = time.Hour
	}
	manifestPath := semantic.ManifestPathFor(conf.VectorConfig.Path)
	if strings.EqualFold(conf.VectorConfig.Backend, "milvus") {
		manifestPath = semantic.ManifestPathFor(conf.VectorConfig.CollectionName)
	}
	m := semantic.NewManager(
		store,
		embedder,
		chunking.New(conf.VectorConfig.Splitter, conf.ChunkSize, conf.ChunkOverlap),
		semantic.NewManifestFile(manifestPath),
		semantic.Options{
			BatchSize:     conf.EmbedBatchSize,
			MinScore:      conf.RetrievalConfig.MinScore,
			RefreshWindow: window,
		},
	)
	zlog.Info("embedder ready", zap.String("provider", meta.Provider), zap.String("model", meta.Model), zap.Int("dim", meta.Dim))
	return m, closeStore, nil
}

// NewAssistant 创建并加载全部组件。
// 语义索引不可用、图库不可达（启用图检索时）、模型未配置都会直接返回错误，由 main 终止启动。
func NewAssistant(ctx context.Context, conf *config.Config) (_ *Assistant, err error) {
	a := &Assistant{Conf: conf}
	defer func() {
		if err != nil {
			a.Close(context.Background())
		}
	}()

	src, closeSrc, err := NewRecordSource(ctx, conf)
	if err != nil {
		return nil, fmt.Errorf("%w: operational store: %v", apperr.ErrIndexUnavailable, err)
	}
	a.addCloser(closeSrc)

	rc := conf.RetrievalConfig

	var sem *semantic.Manager
	if rc.EnableSemantic {
		m, closeStore, err := NewSemanticManager(ctx, conf)
		if err != nil {
			return nil, err
		}
		a.addCloser(closeStore)
		sem = m
	}

	var kw *keyword.Index
	if rc.EnableKeyword {
		kw = keyword.NewIndex()
	}

	// 接口值为 nil 时服务端视为未启用，避免 typed nil
	var (
		semIdx service.SemanticIndex
		semQ   fusion.SemanticQuerier
		kwIdx  service.KeywordIndex
		kwQ    fusion.KeywordQuerier
	)
	if sem != nil {
		semIdx, semQ = sem, sem
	}
	if kw != nil {
		kwIdx, kwQ = kw, kw
	}

	a.IndexSvc = service.NewIndexService(src, semIdx, kwIdx)
	if err := a.IndexSvc.Load(ctx); err != nil {
		if !errors.Is(err, apperr.ErrIndexUnavailable) {
			err = fmt.Errorf("%w: %v", apperr.ErrIndexUnavailable, err)
		}
		return nil, err
	}

	var (
		graphQ   fusion.GraphSearcher
		builderS service.GraphRebuilder
		searchS  service.GraphSearcher
	)
	if rc.EnableGraph {
		runner, err := graphdb.NewNeo4jRunner(ctx, conf.Neo4jConfig)
		if err != nil {
			return nil, err
		}
		a.addCloser(runner.Close)
		router := graphdb.NewRouter(runner)
		graphQ, searchS = router, router
		builderS = graphdb.NewBuilder(runner)
	}
	a.GraphSvc = service.NewGraphService(src, builderS, searchS)

	chatModel, cmMeta, err := llm.NewChatModelFromConfig(ctx, conf)
	if err != nil {
		return nil, fmt.Errorf("chat model: %w", err)
	}
	zlog.Info("chat model ready", zap.String("provider", cmMeta.Provider), zap.String("model", cmMeta.Model))

	retriever := fusion.NewRetriever(semQ, kwQ, graphQ, fusion.Options{
		SemanticK:      rc.SemanticTopK,
		KeywordK:       rc.KeywordTopK,
		SemanticWeight: rc.SemanticWeight,
		KeywordWeight:  rc.KeywordWeight,
		Merged:         strings.EqualFold(rc.Mode, "merged"),
		SourceTimeout:  time.Duration(rc.SourceTimeoutSeconds) * time.Second,
	})
	answerer, err := pipeline.NewAnswerPipeline(retriever, chatModel, memory.NewBuffer(rc.MemoryTurns), pipeline.Options{
		ContactPhone:    rc.ContactPhone,
		GenerateTimeout: time.Duration(rc.GenerateTimeoutSecond) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("answer pipeline: %w", err)
	}
	a.AskSvc = service.NewAskService(answerer)

	if err := a.startRefreshers(ctx); err != nil {
		return nil, err
	}

	if key := strings.TrimSpace(conf.JwtConfig.Key); key != "" {
		signer, err := myjwt.NewSigner(key, conf.JwtConfig.Issuer, conf.JwtConfig.ExpireHours)
		if err != nil {
			return nil, err
		}
		a.Signer = signer
	} else {
		zlog.Warn("jwtConfig.key is empty, admin api disabled")
	}
	return a, nil
}

// startRefreshers 启动周期刷新与 Kafka 变更订阅（均可选）
func (a *Assistant) startRefreshers(ctx context.Context) error {
	conf := a.Conf
	var publisher mq.Publisher
	if conf.KafkaConfig.Enabled {
		pub, err := kafka.NewPublisher(kafka.PublisherConfig{
			Brokers:           conf.KafkaConfig.Brokers,
			ClientID:          conf.KafkaConfig.ClientID,
			Topic:             conf.KafkaConfig.ChangeTopic,
			Partitions:        3,
			ReplicationFactor: 1,
		})
		if err != nil {
			return fmt.Errorf("kafka publisher: %w", err)
		}
		publisher = pub
		a.addCloser(func(context.Context) error { return pub.Close() })

		consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers:  conf.KafkaConfig.Brokers,
			GroupID:  conf.KafkaConfig.ConsumerGroupID,
			Topics:   []string{conf.KafkaConfig.ChangeTopic},
			ClientID: conf.KafkaConfig.ClientID,
		})
		if err != nil {
			return fmt.Errorf("kafka consumer: %w", err)
		}
		a.consumer = consumer
		a.changes = event.NewChangeHandler(a.IndexSvc, time.Duration(conf.KafkaConfig.DebounceSeconds)*time.Second)

		runCtx, cancel := context.WithCancel(context.Background())
		a.cancel = cancel
		go func() {
			if err := consumer.Run(runCtx, a.changes); err != nil && !errors.Is(err, context.Canceled) {
				zlog.Error("change consumer stopped", zap.Error(err))
			}
		}()
		zlog.Info("change consumer started", zap.String("topic", conf.KafkaConfig.ChangeTopic))
	}
	a.ChangeSvc = service.NewChangeService(publisher, conf.KafkaConfig.ChangeTopic)

	if conf.SchedulerConfig.Enabled {
		a.scheduler = scheduler.NewSchedulerManager(a.IndexSvc, conf.RefreshCron, 0)
		if err := a.scheduler.Start(); err != nil {
			return err
		}
	}
	return nil
}

func (a *Assistant) addCloser(fn func(context.Context) error) {
	if fn != nil {
		a.closers = append(a.closers, fn)
	}
}

// Close 停止后台任务并释放连接
func (a *Assistant) Close(ctx context.Context) {
	if a == nil {
		return
	}
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.cancel != nil {
		a.cancel()
	}
	if a.consumer != nil {
		_ = a.consumer.Close()
	}
	if a.changes != nil {
		a.changes.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			zlog.Warn("close resource failed", zap.Error(err))
		}
	}
	a.closers = nil
}
