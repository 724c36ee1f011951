package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gofrs/uuid/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"resume-screener-go/internal/config"
	"resume-screener-go/internal/tracing"
	"resume-screener-go/internal/types"
)

// 定义Qdrant的专用tracer
var qdrantTracer = otel.Tracer("resume-screener-go/storage/qdrant")

// payloadTextMaxLen payload中正文预览的最大长度，完整文本由向量与元数据承载
const payloadTextMaxLen = 1000

// VectorIndex 语义索引接口
type VectorIndex interface {
	// EnsureCollection 确保目标集合存在（幂等）
	EnsureCollection(ctx context.Context, dimension int) error

	// UpsertChunkVectors 将一批分块及其向量写入集合，返回生成的点ID
	UpsertChunkVectors(ctx context.Context, chunks []types.ResumeChunk, vectors [][]float64) ([]string, error)

	// Search 用查询向量检索最相似的分块
	Search(ctx context.Context, queryVector []float64, limit int) ([]types.SearchResultItem, error)
}

// 确保Qdrant实现了VectorIndex接口
var _ VectorIndex = (*Qdrant)(nil)

// Qdrant 提供向量数据库功能
type Qdrant struct {
	endpoint       string
	collectionName string
	vectorSize     int
	distanceMetric string
	apiKey         string
	searchLimit    int
	httpClient     *http.Client

	// ensured 集合保障是棘轮：一旦确认存在就不再探测
	ensureMu sync.Mutex
	ensured  bool
}

// QdrantOption 定义Qdrant构造函数选项
type QdrantOption func(*Qdrant)

// WithDistanceMetric 设置距离度量
func WithDistanceMetric(metric string) QdrantOption {
	return func(q *Qdrant) {
		q.distanceMetric = metric
	}
}

// WithHttpTimeout 设置HTTP客户端超时
func WithHttpTimeout(timeout time.Duration) QdrantOption {
	return func(q *Qdrant) {
		q.httpClient = &http.Client{Timeout: timeout}
	}
}

// NewQdrant 创建Qdrant客户端
// 构造时不访问服务器，集合保障推迟到第一次写入
func NewQdrant(cfg *config.QdrantConfig, opts ...QdrantOption) (*Qdrant, error) {
	if cfg == nil {
		return nil, fmt.Errorf("qdrant配置不能为空")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "http://localhost:6333" // 默认端点
	}

	collectionName := cfg.Collection
	if collectionName == "" {
		collectionName = "resumes" // 默认集合名
	}

	searchLimit := cfg.DefaultSearchLimit
	if searchLimit <= 0 {
		searchLimit = 5
	}

	q := &Qdrant{
		endpoint:       endpoint,
		collectionName: collectionName,
		vectorSize:     cfg.Dimension,
		distanceMetric: "Cosine", // 使用余弦相似度
		apiKey:         cfg.APIKey,
		searchLimit:    searchLimit,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
	}

	// 应用选项
	for _, opt := range opts {
		opt(q)
	}

	return q, nil
}

// CollectionName 返回目标集合名
func (q *Qdrant) CollectionName() string {
	return q.collectionName
}

// EnsureCollection 确保向量集合存在
// 通过列举集合名判断是否已存在，不存在时按给定维度创建；
// 确认成功一次后在进程生命周期内不再重复探测
func (q *Qdrant) EnsureCollection(ctx context.Context, dimension int) error {
	q.ensureMu.Lock()
	defer q.ensureMu.Unlock()

	if q.ensured {
		return nil
	}

	ctx, span := qdrantTracer.Start(ctx, "Qdrant.EnsureCollection",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("net.peer.name", q.endpoint),
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", "ensure_collection"),
		attribute.String("db.collection", q.collectionName),
		attribute.Int("db.vector_size", dimension),
	)

	if dimension <= 0 {
		err := fmt.Errorf("集合维度必须为正数，得到 %d", dimension)
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return err
	}

	if q.vectorSize > 0 && dimension != q.vectorSize {
		log.Printf("警告: 嵌入维度(%d)与配置维度(%d)不一致，以嵌入维度为准", dimension, q.vectorSize)
		span.AddEvent("dimension_mismatch", trace.WithAttributes(
			attribute.Int("configured_dimension", q.vectorSize),
			attribute.Int("observed_dimension", dimension),
		))
	}

	// 列举现有集合名
	var listResp struct {
		Result struct {
			Collections []struct {
				Name string `json:"name"`
			} `json:"collections"`
		} `json:"result"`
		Status string  `json:"status"`
		Time   float64 `json:"time"`
	}
	if err := q.doRequest(ctx, http.MethodGet, "/collections", nil, &listResp); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return fmt.Errorf("列举集合失败: %w", err)
	}

	for _, c := range listResp.Result.Collections {
		if c.Name == q.collectionName {
			span.AddEvent("collection_exists")
			span.SetStatus(codes.Ok, "")
			q.vectorSize = dimension
			q.ensured = true
			return nil
		}
	}

	// 集合不存在，按当前维度创建
	createReqBody := map[string]interface{}{
		"vectors": map[string]interface{}{
			"size":     dimension,
			"distance": q.distanceMetric,
		},
	}
	if err := q.doRequest(ctx, http.MethodPut, "/collections/"+q.collectionName, createReqBody, nil); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return fmt.Errorf("创建集合 '%s' 失败: %w", q.collectionName, err)
	}

	span.AddEvent("collection_created")
	span.SetStatus(codes.Ok, "")
	log.Printf("已创建Qdrant集合: %s，维度: %d，距离: %s", q.collectionName, dimension, q.distanceMetric)
	q.vectorSize = dimension
	q.ensured = true
	return nil
}

// UpsertChunkVectors 将简历分块及其向量作为一个批次写入集合
// 每个点分配新生成的随机ID；payload为分块元数据加截断后的正文预览
func (q *Qdrant) UpsertChunkVectors(ctx context.Context, chunks []types.ResumeChunk, vectors [][]float64) ([]string, error) {
	ctx, span := qdrantTracer.Start(ctx, "Qdrant.UpsertChunkVectors",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", "upsert_points"),
		attribute.String("db.collection", q.collectionName),
		attribute.Int("vectors.count", len(vectors)),
	)

	if len(chunks) != len(vectors) {
		err := fmt.Errorf("chunks数量(%d)与vectors数量(%d)不匹配", len(chunks), len(vectors))
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return nil, err
	}

	// 空批次是合法的空操作，不触碰服务器
	if len(vectors) == 0 {
		span.SetStatus(codes.Ok, "no vectors to store")
		return []string{}, nil
	}

	// 集合维度以本批次第一条向量为准
	dimension := len(vectors[0])
	if err := q.EnsureCollection(ctx, dimension); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return nil, fmt.Errorf("确保集合存在失败: %w", err)
	}

	points := make([]interface{}, 0, len(vectors))
	ids := make([]string, 0, len(vectors))

	for i, vector := range vectors {
		if len(vector) != dimension {
			err := fmt.Errorf("第%d条向量维度(%d)与批次维度(%d)不一致", i, len(vector), dimension)
			tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
			return nil, err
		}

		chunk := chunks[i]
		pointUUID, err := uuid.NewV4()
		if err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeInternal)
			return nil, fmt.Errorf("生成点ID失败: %w", err)
		}
		pointID := pointUUID.String()
		ids = append(ids, pointID)

		// payload继承分块元数据，另附正文预览
		payload := make(map[string]interface{}, len(chunk.Metadata)+1)
		for k, v := range chunk.Metadata {
			payload[k] = v
		}
		payload["text"] = truncateString(chunk.Text, payloadTextMaxLen)

		points = append(points, map[string]interface{}{
			"id":      pointID,
			"vector":  vector,
			"payload": payload,
		})
	}

	requestBody := map[string]interface{}{
		"points": points,
	}

	var response struct {
		Result struct {
			Status string `json:"status"`
		} `json:"result"`
		Status string  `json:"status"`
		Time   float64 `json:"time"`
	}
	err := q.doRequest(ctx, http.MethodPut,
		fmt.Sprintf("/collections/%s/points?wait=true", q.collectionName), requestBody, &response)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return nil, fmt.Errorf("写入向量点失败: %w", err)
	}

	span.SetAttributes(
		attribute.String("qdrant.response_status", response.Status),
		attribute.Float64("qdrant.response_time", response.Time),
	)
	span.SetStatus(codes.Ok, "")
	return ids, nil
}

// Search 在集合中检索与查询向量最相似的分块
// limit非正时使用配置的默认值；集合为空时返回空列表而非错误
func (q *Qdrant) Search(ctx context.Context, queryVector []float64, limit int) ([]types.SearchResultItem, error) {
	ctx, span := qdrantTracer.Start(ctx, "Qdrant.Search",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", "search_points"),
		attribute.String("db.collection", q.collectionName),
		attribute.Int("search.limit", limit),
		attribute.Int("query_vector.size", len(queryVector)),
	)

	if len(queryVector) == 0 {
		err := fmt.Errorf("查询向量不能为空")
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return nil, err
	}

	if limit <= 0 {
		limit = q.searchLimit
	}

	searchReq := map[string]interface{}{
		"vector":       queryVector,
		"limit":        limit,
		"with_payload": true,
	}

	var result struct {
		Result []struct {
			ID      string                 `json:"id"`
			Score   float32                `json:"score"`
			Payload map[string]interface{} `json:"payload"`
		} `json:"result"`
		Status string  `json:"status"`
		Time   float64 `json:"time"`
	}

	err := q.doRequest(ctx, http.MethodPost,
		fmt.Sprintf("/collections/%s/points/search", q.collectionName), searchReq, &result)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return nil, fmt.Errorf("检索向量失败: %w", err)
	}

	searchResults := make([]types.SearchResultItem, 0, len(result.Result))
	for _, point := range result.Result {
		searchResults = append(searchResults, types.SearchResultItem{
			ID:      point.ID,
			Score:   point.Score,
			Payload: point.Payload,
		})
	}

	span.SetAttributes(
		attribute.Int("search.results.count", len(searchResults)),
		attribute.String("qdrant.response_status", result.Status),
		attribute.Float64("qdrant.response_time", result.Time),
	)
	span.SetStatus(codes.Ok, "")
	return searchResults, nil
}

// DeletePoints 删除指定ID的向量点
func (q *Qdrant) DeletePoints(ctx context.Context, pointIDs []string) error {
	ctx, span := qdrantTracer.Start(ctx, "Qdrant.DeletePoints",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", "delete_points"),
		attribute.String("db.collection", q.collectionName),
		attribute.Int("points.count", len(pointIDs)),
	)

	if len(pointIDs) == 0 {
		span.SetStatus(codes.Ok, "no points to delete")
		return nil
	}

	reqBody := map[string]interface{}{
		"points": pointIDs,
	}

	var result struct {
		Result struct {
			Status string `json:"status"`
		} `json:"result"`
		Status string  `json:"status"`
		Time   float64 `json:"time"`
	}
	err := q.doRequest(ctx, http.MethodPost,
		fmt.Sprintf("/collections/%s/points/delete?wait=true", q.collectionName), reqBody, &result)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return err
	}

	span.SetAttributes(
		attribute.String("qdrant.response_status", result.Status),
		attribute.Float64("qdrant.response_time", result.Time),
	)
	span.SetStatus(codes.Ok, "")
	return nil
}

// CountPoints 获取集合中的点数量
func (q *Qdrant) CountPoints(ctx context.Context) (int64, error) {
	ctx, span := qdrantTracer.Start(ctx, "Qdrant.CountPoints",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("net.peer.name", q.endpoint),
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", "count_points"),
		attribute.String("db.collection", q.collectionName),
	)

	countReqBody := map[string]interface{}{
		"exact": true, // 精确计数
	}

	var result struct {
		Result struct {
			Count int64 `json:"count"`
		} `json:"result"`
		Status string  `json:"status"`
		Time   float64 `json:"time"`
	}
	err := q.doRequest(ctx, http.MethodPost,
		fmt.Sprintf("/collections/%s/points/count", q.collectionName), countReqBody, &result)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return 0, err
	}

	span.SetAttributes(
		attribute.String("qdrant.response_status", result.Status),
		attribute.Float64("qdrant.response_time", result.Time),
		attribute.Int64("qdrant.points.count", result.Result.Count),
	)
	span.SetStatus(codes.Ok, "")
	return result.Result.Count, nil
}

// 辅助函数 - 按字节上限截断字符串，保证切口落在rune边界上
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}

	cut := maxLen
	suffix := ""
	if maxLen > 3 {
		cut = maxLen - 3
		suffix = "..."
	}
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + suffix
}

func (q *Qdrant) doRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	ctx, span := qdrantTracer.Start(ctx, fmt.Sprintf("%s %s", method, path),
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("net.peer.name", q.endpoint),
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", path),
	)

	var req *http.Request
	var err error

	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
			return err
		}

		req, err = http.NewRequestWithContext(ctx, method, q.endpoint+path, bytes.NewBuffer(jsonBody))
		if err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		span.SetAttributes(attribute.Int("http.request.body.size", len(jsonBody)))
	} else {
		req, err = http.NewRequestWithContext(ctx, method, q.endpoint+path, nil)
		if err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
			return err
		}
	}

	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}

	// 注入trace context
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := q.httpClient.Do(req)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeHTTP)
		return err
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeHTTP)
		return err
	}

	span.SetAttributes(attribute.Int("http.response.body.size", len(respBody)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err = fmt.Errorf("qdrant API error: status=%d, body=%s", resp.StatusCode, string(respBody))
		tracing.RecordHTTPError(span, err, resp.StatusCode)
		return err
	}

	if result != nil && len(respBody) > 0 {
		if err = json.Unmarshal(respBody, result); err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
			return err
		}
	}

	span.SetStatus(codes.Ok, "")
	return nil
}
