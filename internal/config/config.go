package config

import (
	"log"
	"os"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

type MainConfig struct {
	AppName   string `toml:"appName"`
	Host      string `toml:"host"`
	Port      int    `toml:"port"`
	EnableTLS bool   `toml:"enableTLS"`
	CertFile  string `toml:"certFile"`
	KeyFile   string `toml:"keyFile"`
}

type LogConfig struct {
	LogPath string `toml:"logPath"`
	Level   string `toml:"level"`
}

// StoreConfig 业务库（运营数据）来源
type StoreConfig struct {
	Driver         string `toml:"driver"` // mongo | mysql
	TimestampField string `toml:"timestampField"`
}

type MongoConfig struct {
	URI            string `toml:"uri"`
	DatabaseName   string `toml:"databaseName"`
	TimeoutSeconds int    `toml:"timeoutSeconds"`
}

type MysqlConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	User         string `toml:"user"`
	Password     string `toml:"password"`
	DatabaseName string `toml:"databaseName"`
}

// VectorConfig 语义索引配置
type VectorConfig struct {
	Backend        string `toml:"backend"` // chromem | milvus
	Path           string `toml:"path"`
	CollectionName string `toml:"collectionName"`
	Compress       bool   `toml:"compress"`
	ChunkSize      int    `toml:"chunkSize"`
	ChunkOverlap   int    `toml:"chunkOverlap"`
	Splitter       string `toml:"splitter"` // window | recursive
	EmbedBatchSize int    `toml:"embedBatchSize"`
	RefreshWindow  string `toml:"refreshWindow"` // 例如 1h
}

type MilvusConfig struct {
	Address        string `toml:"address"`
	Username       string `toml:"username"`
	Password       string `toml:"password"`
	DBName         string `toml:"dbName"`
	CollectionName string `toml:"collectionName"`
	VectorDim      int    `toml:"vectorDim"`
	MetricType     string `toml:"metricType"`
}

type Neo4jConfig struct {
	URI                   string `toml:"uri"`
	Username              string `toml:"username"`
	Password              string `toml:"password"`
	Database              string `toml:"database"`
	MaxConnectionPoolSize int    `toml:"maxConnectionPoolSize"`
	ConnectTimeoutSeconds int    `toml:"connectTimeoutSeconds"`
	MaxConnLifetimeSecs   int    `toml:"maxConnLifetimeSeconds"`
}

type KafkaConfig struct {
	Enabled         bool     `toml:"enabled"`
	Brokers         []string `toml:"brokers"`
	ClientID        string   `toml:"clientID"`
	ChangeTopic     string   `toml:"changeTopic"`
	ConsumerGroupID string   `toml:"consumerGroupID"`
	DebounceSeconds int      `toml:"debounceSeconds"`
}

type AIEmbeddingConfig struct {
	Provider        string `toml:"provider"`
	APIKey          string `toml:"apiKey"`
	AccessKey       string `toml:"accessKey"`
	SecretKey       string `toml:"secretKey"`
	BaseURL         string `toml:"baseURL"`
	Region          string `toml:"region"`
	Model           string `toml:"model"`
	Dimensions      int    `toml:"dimensions"`
	TimeoutSeconds  int    `toml:"timeoutSeconds"`
	RetryTimes      int    `toml:"retryTimes"`
	User            string `toml:"user"`
	ByAzure         bool   `toml:"byAzure"`
	AzureAPIVersion string `toml:"azureApiVersion"`
}

type AIChatModelConfig struct {
	Provider        string `toml:"provider"`
	APIKey          string `toml:"apiKey"`
	AccessKey       string `toml:"accessKey"`
	SecretKey       string `toml:"secretKey"`
	BaseURL         string `toml:"baseURL"`
	Region          string `toml:"region"`
	Model           string `toml:"model"`
	TimeoutSeconds  int    `toml:"timeoutSeconds"`
	RetryTimes      int    `toml:"retryTimes"`
	ByAzure         bool   `toml:"byAzure"`
	AzureAPIVersion string `toml:"azureApiVersion"`
}

type AIConfig struct {
	Embedding AIEmbeddingConfig `toml:"embedding"`
	ChatModel AIChatModelConfig `toml:"chatModel"`
}

// RetrievalConfig 混合召回配置
type RetrievalConfig struct {
	SemanticTopK          int     `toml:"semanticTopK"`
	KeywordTopK           int     `toml:"keywordTopK"`
	MinScore              float32 `toml:"minScore"`
	SemanticWeight        float64 `toml:"semanticWeight"`
	KeywordWeight         float64 `toml:"keywordWeight"`
	Mode                  string  `toml:"mode"` // separate | merged
	EnableSemantic        bool    `toml:"enableSemantic"`
	EnableKeyword         bool    `toml:"enableKeyword"`
	EnableGraph           bool    `toml:"enableGraph"`
	SourceTimeoutSeconds  int     `toml:"sourceTimeoutSeconds"`
	GenerateTimeoutSecond int     `toml:"generateTimeoutSeconds"`
	ContactPhone          string  `toml:"contactPhone"`
	MemoryTurns           int     `toml:"memoryTurns"`
}

type SchedulerConfig struct {
	Enabled     bool   `toml:"enabled"`
	RefreshCron string `toml:"refreshCron"`
}

type JwtConfig struct {
	Key         string `toml:"key"`
	ExpireHours int    `toml:"expireHours"`
	Issuer      string `toml:"issuer"`
}

// MCPConfig MCP 配置
type MCPConfig struct {
	Enabled bool   `toml:"enabled"`
	Name    string `toml:"name"`
	Version string `toml:"version"`
	BaseURL string `toml:"baseURL"`
}

type Config struct {
	MainConfig      `toml:"mainConfig"`
	LogConfig       `toml:"logConfig"`
	StoreConfig     `toml:"storeConfig"`
	MongoConfig     `toml:"mongoConfig"`
	MysqlConfig     `toml:"mysqlConfig"`
	VectorConfig    `toml:"vectorConfig"`
	MilvusConfig    `toml:"milvusConfig"`
	Neo4jConfig     `toml:"neo4jConfig"`
	KafkaConfig     `toml:"kafkaConfig"`
	AIConfig        `toml:"aiConfig"`
	RetrievalConfig `toml:"retrievalConfig"`
	SchedulerConfig `toml:"schedulerConfig"`
	JwtConfig       `toml:"jwtConfig"`
	MCPConfig       `toml:"mcpConfig"`
}

const defaultConfigPath = "configs/config_local.toml"

var (
	config   *Config
	loadOnce sync.Once
)

// LoadConfig 读取 toml 配置，再用 .env / 环境变量覆盖密钥类字段
func LoadConfig(path string) (*Config, error) {
	conf := Default()
	_ = godotenv.Load()
	if strings.TrimSpace(path) == "" {
		path = defaultConfigPath
	}
	if _, err := toml.DecodeFile(path, conf); err != nil {
		log.Printf("加载配置文件失败: %v, 使用默认设置", err)
		conf.ApplyEnv()
		conf.ApplyDefaults()
		return conf, err
	}
	conf.ApplyEnv()
	conf.ApplyDefaults()
	return conf, nil
}

func GetConfig() *Config {
	loadOnce.Do(func() {
		config, _ = LoadConfig(os.Getenv("SHOPSAGE_CONFIG"))
	})
	return config
}

// Default 返回带默认值的配置
func Default() *Config {
	c := &Config{}
	c.RetrievalConfig.EnableSemantic = true
	c.RetrievalConfig.EnableKeyword = true
	c.RetrievalConfig.EnableGraph = true
	c.ApplyDefaults()
	return c
}

// ApplyDefaults 填充未配置的字段
func (c *Config) ApplyDefaults() {
	if c.AppName == "" {
		c.AppName = "ShopSage"
	}
	if c.MainConfig.Host == "" {
		c.MainConfig.Host = "0.0.0.0"
	}
	if c.MainConfig.Port == 0 {
		c.MainConfig.Port = 8000
	}
	if c.StoreConfig.Driver == "" {
		c.StoreConfig.Driver = "mongo"
	}
	if c.TimestampField == "" {
		c.TimestampField = "last_updated"
	}
	if c.MongoConfig.URI == "" {
		c.MongoConfig.URI = "mongodb://localhost:27017"
	}
	if c.MongoConfig.DatabaseName == "" {
		c.MongoConfig.DatabaseName = "budget_app_db"
	}
	if c.MongoConfig.TimeoutSeconds <= 0 {
		c.MongoConfig.TimeoutSeconds = 10
	}
	if c.VectorConfig.Backend == "" {
		c.VectorConfig.Backend = "chromem"
	}
	if c.VectorConfig.Path == "" {
		c.VectorConfig.Path = "faiss_index"
	}
	if c.VectorConfig.CollectionName == "" {
		c.VectorConfig.CollectionName = "business_docs"
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = 300
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		c.ChunkOverlap = 30
	}
	if c.Splitter == "" {
		c.Splitter = "window"
	}
	if c.EmbedBatchSize <= 0 {
		c.EmbedBatchSize = 16
	}
	if c.RefreshWindow == "" {
		c.RefreshWindow = "1h"
	}
	if c.MilvusConfig.VectorDim <= 0 {
		c.MilvusConfig.VectorDim = 768
	}
	if c.Neo4jConfig.Username == "" {
		c.Neo4jConfig.Username = "neo4j"
	}
	if c.Neo4jConfig.ConnectTimeoutSeconds <= 0 {
		c.Neo4jConfig.ConnectTimeoutSeconds = 10
	}
	if c.Neo4jConfig.MaxConnLifetimeSecs <= 0 {
		c.Neo4jConfig.MaxConnLifetimeSecs = 30
	}
	if c.KafkaConfig.ChangeTopic == "" {
		c.KafkaConfig.ChangeTopic = "shopsage.record-changes"
	}
	if c.KafkaConfig.ConsumerGroupID == "" {
		c.KafkaConfig.ConsumerGroupID = "shopsage-indexer"
	}
	if c.KafkaConfig.DebounceSeconds <= 0 {
		c.KafkaConfig.DebounceSeconds = 10
	}
	r := &c.RetrievalConfig
	if r.SemanticTopK <= 0 {
		r.SemanticTopK = 4
	}
	if r.KeywordTopK <= 0 {
		r.KeywordTopK = 4
	}
	if r.SemanticWeight <= 0 && r.KeywordWeight <= 0 {
		r.SemanticWeight = 0.6
		r.KeywordWeight = 0.4
	}
	if r.Mode == "" {
		r.Mode = "separate"
	}
	if r.SourceTimeoutSeconds <= 0 {
		r.SourceTimeoutSeconds = 15
	}
	if r.GenerateTimeoutSecond <= 0 {
		r.GenerateTimeoutSecond = 60
	}
	if r.ContactPhone == "" {
		r.ContactPhone = "077-6694351"
	}
	if r.MemoryTurns <= 0 {
		r.MemoryTurns = 50
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "@hourly"
	}
	if c.MCPConfig.Name == "" {
		c.MCPConfig.Name = "shopsage"
	}
	if c.MCPConfig.Version == "" {
		c.MCPConfig.Version = "1.0.0"
	}
}

// ApplyEnv 环境变量优先于配置文件（密钥不应写进 toml）
func (c *Config) ApplyEnv() {
	setIfEnv(&c.MongoConfig.URI, "MONGO_URI")
	setIfEnv(&c.MongoConfig.DatabaseName, "DB_NAME")
	setIfEnv(&c.Neo4jConfig.URI, "NEO4J_URI")
	setIfEnv(&c.Neo4jConfig.Username, "NEO4J_USERNAME")
	setIfEnv(&c.Neo4jConfig.Password, "NEO4J_PASSWORD")
	setIfEnv(&c.MysqlConfig.Password, "MYSQL_PASSWORD")
	setIfEnv(&c.MilvusConfig.Password, "MILVUS_PASSWORD")
	setIfEnv(&c.JwtConfig.Key, "JWT_KEY")
	setIfEnv(&c.AIConfig.ChatModel.APIKey, "OPENAI_API_KEY")
	setIfEnv(&c.AIConfig.Embedding.APIKey, "OPENAI_API_KEY")
	setIfEnv(&c.AIConfig.ChatModel.APIKey, "CHAT_MODEL_API_KEY")
	setIfEnv(&c.AIConfig.Embedding.APIKey, "EMBEDDING_API_KEY")
}

func setIfEnv(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}
