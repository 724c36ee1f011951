package parser

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"resume-screener-go/internal/config"
	"resume-screener-go/internal/ratelimit"
)

// GeminiEmbedder 基于Google Gemini嵌入模型的向量化器
// 向量维度由模型首次响应决定，此后对集合的生命周期保持固定
type GeminiEmbedder struct {
	client  *genai.Client
	model   string
	limiter *ratelimit.Limiter
	logger  *log.Logger
}

// GeminiEmbedderOption 嵌入器配置选项
type GeminiEmbedderOption func(*GeminiEmbedder)

// WithEmbedderLogger 配置自定义日志记录器
func WithEmbedderLogger(logger *log.Logger) GeminiEmbedderOption {
	return func(e *GeminiEmbedder) {
		e.logger = logger
	}
}

// WithEmbedderLimiter 配置对嵌入接口的限流器
func WithEmbedderLimiter(limiter *ratelimit.Limiter) GeminiEmbedderOption {
	return func(e *GeminiEmbedder) {
		e.limiter = limiter
	}
}

// NewGeminiEmbedder 创建Gemini嵌入器
func NewGeminiEmbedder(ctx context.Context, apiKey string, embeddingCfg config.EmbeddingConfig, opts ...GeminiEmbedderOption) (*GeminiEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API密钥不能为空")
	}

	model := embeddingCfg.Model
	if model == "" {
		model = "gemini-embedding-001"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("创建Gemini客户端失败: %w", err)
	}

	embedder := &GeminiEmbedder{
		client: client,
		model:  model,
		logger: log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(embedder)
	}
	return embedder, nil
}

// EmbedStrings 将一批文本转换为等长的一批向量，顺序与输入一致
func (e *GeminiEmbedder) EmbedStrings(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return [][]float64{}, nil
	}

	em := e.client.EmbeddingModel(e.model)
	batch := em.NewBatch()
	for _, text := range texts {
		batch = batch.AddContent(genai.Text(text))
	}

	var resp *genai.BatchEmbedContentsResponse
	call := func() error {
		var err error
		resp, err = em.BatchEmbedContents(ctx, batch)
		return err
	}

	var err error
	if e.limiter != nil {
		err = e.limiter.Do(ctx, call)
	} else {
		err = call()
	}
	if err != nil {
		return nil, fmt.Errorf("调用Gemini嵌入接口失败: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("嵌入结果数量(%d)与输入文本数量(%d)不匹配", len(resp.Embeddings), len(texts))
	}

	embeddings := make([][]float64, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("第%d条文本的嵌入结果为空", i)
		}
		vector := make([]float64, len(emb.Values))
		for j, v := range emb.Values {
			vector[j] = float64(v)
		}
		embeddings[i] = vector
	}

	e.logger.Printf("嵌入完成: %d条文本, 维度=%d", len(texts), len(embeddings[0]))
	return embeddings, nil
}

// Close 释放底层客户端资源
func (e *GeminiEmbedder) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}
