package parser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"resume-screener-go/internal/ratelimit"
	"resume-screener-go/internal/types"
)

// ErrUnparseableResponse 模型输出中找不到可解析的JSON对象
var ErrUnparseableResponse = errors.New("无法从模型响应中解析出结构化数据")

// extractionPromptTemplate 字段抽取提示词
// 要求模型返回严格JSON，字段结构与 types.ResumeRecord 一一对应
const extractionPromptTemplate = `You are an expert resume parser. Extract the following fields from the provided resume text.
Return STRICT JSON ONLY, following EXACTLY this structure.
Don't include code block formatting like ` + "```json ... ```" + `.

Input Resume Text:
%s

Output JSON Structure:
{
    "name": "string or null",
    "email": "string or null",
    "phone": "string or null",
    "summary": "string or null",
    "skills": ["skill1", "skill2"],
    "experience": [
        {
            "company": "string or null",
            "role": "string or null",
            "start_date": "string or null",
            "end_date": "string or null",
            "description": "string or null"
        }
    ],
    "education": [
        {
            "institution": "string or null",
            "degree": "string or null",
            "start_year": "string or null",
            "end_year": "string or null"
        }
    ]
}`

// summaryPromptTemplate 检索结果摘要提示词
const summaryPromptTemplate = `You are an expert at summarizing information. Given the following search results from a resume vector database using semantic search, provide a concise and informative summary that answers the question below.

Question:
%s

Search Results:
%s`

// GeminiExtractor 基于Gemini的简历字段抽取客户端
// 对本核心而言是黑盒：输入重建后的文档文本，输出结构化简历
type GeminiExtractor struct {
	client  *genai.Client
	model   string
	limiter *ratelimit.Limiter
	logger  *log.Logger
}

// GeminiExtractorOption 抽取器配置选项
type GeminiExtractorOption func(*GeminiExtractor)

// WithExtractorLogger 配置自定义日志记录器
func WithExtractorLogger(logger *log.Logger) GeminiExtractorOption {
	return func(e *GeminiExtractor) {
		e.logger = logger
	}
}

// WithExtractorLimiter 配置对生成接口的限流器
func WithExtractorLimiter(limiter *ratelimit.Limiter) GeminiExtractorOption {
	return func(e *GeminiExtractor) {
		e.limiter = limiter
	}
}

// NewGeminiExtractor 创建字段抽取客户端
func NewGeminiExtractor(ctx context.Context, apiKey, model string, opts ...GeminiExtractorOption) (*GeminiExtractor, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API密钥不能为空")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("创建Gemini客户端失败: %w", err)
	}

	extractor := &GeminiExtractor{
		client: client,
		model:  model,
		logger: log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(extractor)
	}
	return extractor, nil
}

// ExtractResumeFields 从重建后的简历文本抽取结构化字段
func (e *GeminiExtractor) ExtractResumeFields(ctx context.Context, resumeText string) (*types.ResumeRecord, error) {
	prompt := fmt.Sprintf(extractionPromptTemplate, resumeText)

	responseText, err := e.generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("调用Gemini抽取接口失败: %w", err)
	}

	record, err := ParseExtractionResponse(responseText)
	if err != nil {
		e.logger.Printf("抽取响应解析失败: %v, 响应前200字符: %.200s", err, responseText)
		return nil, err
	}
	return record, nil
}

// SummarizeSearchResults 针对问题对检索结果生成摘要回答
func (e *GeminiExtractor) SummarizeSearchResults(ctx context.Context, question string, results []types.SearchResultItem) (string, error) {
	resultsJSON, err := json.Marshal(results)
	if err != nil {
		return "", fmt.Errorf("序列化检索结果失败: %w", err)
	}

	prompt := fmt.Sprintf(summaryPromptTemplate, question, string(resultsJSON))
	answer, err := e.generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("调用Gemini摘要接口失败: %w", err)
	}
	return strings.TrimSpace(answer), nil
}

// generate 执行一次生成调用并取回文本，配置了限流器时在限流与重试策略下执行
func (e *GeminiExtractor) generate(ctx context.Context, prompt string) (string, error) {
	model := e.client.GenerativeModel(e.model)
	model.SetTemperature(0.1) // 低温度保证输出稳定

	var resp *genai.GenerateContentResponse
	call := func() error {
		var err error
		resp, err = model.GenerateContent(ctx, genai.Text(prompt))
		return err
	}

	var err error
	if e.limiter != nil {
		err = e.limiter.Do(ctx, call)
	} else {
		err = call()
	}
	if err != nil {
		return "", err
	}
	return textFromResponse(resp)
}

// textFromResponse 从Gemini响应中提取文本部分
func textFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("响应中没有候选结果")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("响应中没有内容")
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("响应中没有文本部分")
	}
	return strings.Join(parts, ""), nil
}

// ParseExtractionResponse 从模型输出中切出JSON对象并反序列化
// 模型偶尔会在JSON前后加说明文字，这里取第一个 '{' 到最后一个 '}' 之间的内容
func ParseExtractionResponse(responseText string) (*types.ResumeRecord, error) {
	start := strings.Index(responseText, "{")
	end := strings.LastIndex(responseText, "}")
	if start == -1 || end == -1 || end < start {
		return nil, ErrUnparseableResponse
	}

	var record types.ResumeRecord
	if err := json.Unmarshal([]byte(responseText[start:end+1]), &record); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseableResponse, err)
	}
	return &record, nil
}

// Close 释放底层客户端资源
func (e *GeminiExtractor) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}
