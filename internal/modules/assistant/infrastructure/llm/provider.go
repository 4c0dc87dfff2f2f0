package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"ShopSage/internal/config"

	arkModel "github.com/cloudwego/eino-ext/components/model/ark"
	openaiModel "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
)

type ChatModelMeta struct {
	Provider string
	Model    string
}

// NewChatModelFromConfig 按 aiConfig.chatModel 创建对话模型；未配置时返回错误
func NewChatModelFromConfig(ctx context.Context, conf *config.Config) (model.BaseChatModel, ChatModelMeta, error) {
	if conf == nil {
		return nil, ChatModelMeta{}, fmt.Errorf("nil config")
	}

	cc := conf.AIConfig.ChatModel
	provider := strings.ToLower(strings.TrimSpace(cc.Provider))
	timeout := 2 * time.Minute
	if cc.TimeoutSeconds > 0 {
		timeout = time.Duration(cc.TimeoutSeconds) * time.Second
	}

	switch provider {
	case "", "disabled", "none":
		return nil, ChatModelMeta{}, fmt.Errorf("chat model provider not configured")
	case "openai":
		return newOpenAI(ctx, cc, timeout)
	case "ark":
		return newArk(ctx, cc, timeout)
	default:
		return nil, ChatModelMeta{}, fmt.Errorf("unknown chat model provider: %s", provider)
	}
}

func newOpenAI(ctx context.Context, cc config.AIChatModelConfig, timeout time.Duration) (model.BaseChatModel, ChatModelMeta, error) {
	apiKey := env(cc.APIKey, "OPENAI_API_KEY")
	modelName := env(cc.Model, "OPENAI_MODEL")
	if apiKey == "" || modelName == "" {
		return nil, ChatModelMeta{}, fmt.Errorf("openai chat model missing apiKey/model")
	}

	cm, err := openaiModel.NewChatModel(ctx, &openaiModel.ChatModelConfig{
		APIKey:     apiKey,
		Model:      modelName,
		BaseURL:    env(cc.BaseURL, "OPENAI_BASE_URL"),
		ByAzure:    cc.ByAzure,
		APIVersion: strings.TrimSpace(cc.AzureAPIVersion),
		Timeout:    timeout,
	})
	if err != nil {
		return nil, ChatModelMeta{}, err
	}
	return cm, ChatModelMeta{Provider: "openai", Model: modelName}, nil
}

func newArk(ctx context.Context, cc config.AIChatModelConfig, timeout time.Duration) (model.BaseChatModel, ChatModelMeta, error) {
	apiKey := env(cc.APIKey, "ARK_API_KEY")
	accessKey := env(cc.AccessKey, "ARK_ACCESS_KEY")
	secretKey := env(cc.SecretKey, "ARK_SECRET_KEY")
	modelName := env(cc.Model, "ARK_MODEL_ID")

	if apiKey == "" && (accessKey == "" || secretKey == "") {
		return nil, ChatModelMeta{}, fmt.Errorf("ark chat model missing apiKey or accessKey/secretKey")
	}
	if modelName == "" {
		return nil, ChatModelMeta{}, fmt.Errorf("ark chat model missing model")
	}

	retryTimes := 2
	if cc.RetryTimes > 0 {
		retryTimes = cc.RetryTimes
	}

	cm, err := arkModel.NewChatModel(ctx, &arkModel.ChatModelConfig{
		APIKey:     apiKey,
		AccessKey:  accessKey,
		SecretKey:  secretKey,
		Model:      modelName,
		BaseURL:    env(cc.BaseURL, "ARK_BASE_URL"),
		Region:     env(cc.Region, "ARK_REGION"),
		Timeout:    &timeout,
		RetryTimes: &retryTimes,
	})
	if err != nil {
		return nil, ChatModelMeta{}, err
	}
	return cm, ChatModelMeta{Provider: "ark", Model: modelName}, nil
}

// env 配置值为空时读取环境变量
func env(val, key string) string {
	if s := strings.TrimSpace(val); s != "" {
		return s
	}
	return strings.TrimSpace(os.Getenv(key))
}
