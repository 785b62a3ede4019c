package repository

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Songmu/retry"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"
)

type AIRepositorier interface {
	GenerateTitle(ctx context.Context, description string) (string, error)
}

type AIRepository struct {
	client *openai.Client
	model  string
}

// NewAIRepository はAPIキーが設定されていなければ nil を返す
func NewAIRepository() (*AIRepository, error) {
	if os.Getenv("OPENAI_API_KEY") == "" && os.Getenv("AZURE_OPENAI_KEY") == "" {
		return nil, nil
	}

	var model = "gpt-4o-mini"
	if os.Getenv("OPENAI_MODEL") != "" {
		model = os.Getenv("OPENAI_MODEL")
	}
	client, err := newOpenAIClient()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenAI client: %w", err)
	}
	return &AIRepository{
		client: client,
		model:  model,
	}, nil
}

func newOpenAIClient() (*openai.Client, error) {
	if os.Getenv("AZURE_OPENAI_ENDPOINT") != "" {
		return newAzureClient()
	}

	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is not set")
	}
	options := []option.RequestOption{
		option.WithAPIKey(key),
	}
	if os.Getenv("OPENAI_BASE_URL") != "" {
		options = append(options, option.WithBaseURL(os.Getenv("OPENAI_BASE_URL")))
	}

	c := openai.NewClient(options...)
	return &c, nil
}

func newAzureClient() (*openai.Client, error) {
	key := os.Getenv("AZURE_OPENAI_KEY")
	if key == "" {
		return nil, fmt.Errorf("AZURE_OPENAI_KEY is not set")
	}
	var azureOpenAIEndpoint = os.Getenv("AZURE_OPENAI_ENDPOINT")

	var azureOpenAIAPIVersion = "2025-01-01-preview"

	if os.Getenv("AZURE_OPENAI_API_VERSION") != "" {
		azureOpenAIAPIVersion = os.Getenv("AZURE_OPENAI_API_VERSION")
	}

	c := openai.NewClient(
		azure.WithEndpoint(azureOpenAIEndpoint, azureOpenAIAPIVersion),
		azure.WithAPIKey(key),
	)
	return &c, nil
}

// GenerateTitle は周知用の短いタイトルを作る
func (h *AIRepository) GenerateTitle(ctx context.Context, description string) (string, error) {
	prompt := fmt.Sprintf(`## 依頼内容
インシデント報告の周知用タイトルを作成してください。
あなたには報告者が書いた事象の説明が与えられます。

## フォーマットの指定：
50文字以内で、事象の特徴を捉えたタイトルを作成してください。
あなたから受け取った文章はそのまま私の定義したテンプレートに埋め込むので構造化文字列ではなく、タイトルだけを返却してください。

## 事象の説明
%s`, description)

	title, err := h.callOpenAIWithRetry(ctx, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(title), nil
}

// 共通のリトライ機能付きOpenAI API呼び出し
func (h *AIRepository) callOpenAIWithRetry(ctx context.Context, prompt string) (string, error) {
	var result string
	err := retry.Retry(3, time.Second*3, func() error {
		resp, err := h.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.UserMessage(prompt),
			},
			Model: h.model,
		})
		if err != nil {
			return err
		}

		if len(resp.Choices) == 0 {
			return fmt.Errorf("no response from OpenAI")
		}

		result = resp.Choices[0].Message.Content
		return nil
	})

	return result, err
}
