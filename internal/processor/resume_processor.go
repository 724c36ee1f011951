package processor

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"resume-screener-go/internal/logger"
	"resume-screener-go/internal/parser"
	"resume-screener-go/internal/storage"
	"resume-screener-go/internal/storage/models"
	"resume-screener-go/internal/types"
)

var processorTracer = otel.Tracer("resume-screener-go/processor")

// ResumeProcessor 简历处理流水线的组件聚合
// 各组件通过接口注入，测试时可单独替换
type ResumeProcessor struct {
	PDFExtractor   PDFExtractor
	FieldExtractor FieldExtractor
	Embedder       TextEmbedder
	VectorIndex    VectorIndex

	// 可选的存储依赖：为nil时对应步骤跳过
	FileStore   FileStore
	DedupStore  DedupStore
	ResumeStore ResumeStore
}

// ProcessResult 一次简历摄入的结果
type ProcessResult struct {
	ResumeID   string                 `json:"resume_id"`
	Duplicate  bool                   `json:"duplicate"`  // 命中MD5去重时为true，其余字段为空
	ChunkCount int                    `json:"chunk_count"`
	PointIDs   []string               `json:"point_ids"`
	Record     *types.ResumeRecord    `json:"record"`
	Meta       map[string]interface{} `json:"meta"`
}

// SearchOutput 一次语义检索的结果
type SearchOutput struct {
	Results []types.SearchResultItem `json:"results"`
	Summary string                   `json:"summary,omitempty"`
}

// NewResumeProcessor 创建简历处理器
func NewResumeProcessor(opts ...Option) *ResumeProcessor {
	p := &ResumeProcessor{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessResume 执行完整的简历摄入流水线
// 上传原始文件、解析PDF、抽取结构化字段、入库、分块、嵌入、写入向量索引
// MD5命中去重时短路返回之前分配的简历ID
func (p *ResumeProcessor) ProcessResume(ctx context.Context, fileData []byte, filename string) (*ProcessResult, error) {
	ctx, span := processorTracer.Start(ctx, "ResumeProcessor.ProcessResume")
	defer span.End()

	startTime := time.Now()
	resumeID := uuid.NewString()
	span.SetAttributes(
		attribute.String("resume.id", resumeID),
		attribute.String("resume.filename", filename),
		attribute.Int("resume.file_size", len(fileData)),
	)

	if len(fileData) == 0 {
		err := NewParseError(resumeID, "文件内容为空")
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	// 先算MD5做去重检查，避免对重复文件做全量处理
	md5Sum := md5.Sum(fileData)
	md5Hex := hex.EncodeToString(md5Sum[:])

	if p.DedupStore != nil {
		exists, err := p.DedupStore.CheckRawFileMD5Exists(ctx, md5Hex)
		if err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("resume_id", resumeID).Msg("MD5去重检查失败，继续处理")
		} else if exists {
			existingID, err := p.DedupStore.GetResumeIDByMD5(ctx, md5Hex)
			if err != nil {
				logger.Ctx(ctx).Warn().Err(err).Str("md5", md5Hex).Msg("查询已有简历ID失败")
			}
			// 集合命中但映射已过期时按新文件处理，避免返回无法定位的空ID
			if existingID != "" {
				span.AddEvent("duplicate_resume", trace.WithAttributes(attribute.String("md5", md5Hex)))
				span.SetStatus(codes.Ok, "duplicate")
				logger.Ctx(ctx).Info().Str("md5", md5Hex).Str("existing_resume_id", existingID).Msg("命中文件去重，跳过处理")
				return &ProcessResult{ResumeID: existingID, Duplicate: true}, nil
			}
			logger.Ctx(ctx).Warn().Str("md5", md5Hex).Msg("去重集合命中但简历ID映射缺失，按新文件处理")
		}
	}

	// 上传原始文件到对象存储
	var objectKey string
	if p.FileStore != nil {
		ext := fileExtension(filename)
		key, _, err := p.FileStore.UploadResumeFileStreaming(ctx, resumeID, ext, bytes.NewReader(fileData), int64(len(fileData)))
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, NewStoreFileError(resumeID, err.Error())
		}
		objectKey = key
	}

	// 解析PDF全文
	text, meta, err := p.PDFExtractor.ExtractFromBytes(ctx, fileData)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, parser.ErrNoTextContent) {
			return nil, &ResumeProcessError{ResumeID: resumeID, Op: "parse", BaseErr: ErrNoTextContent}
		}
		return nil, NewParseError(resumeID, err.Error())
	}

	// 抽取结构化字段
	record, err := p.FieldExtractor.ExtractResumeFields(ctx, text)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, NewExtractionError(resumeID, err.Error())
	}

	// 写入关系数据库
	if p.ResumeStore != nil {
		if err := p.ResumeStore.InsertResume(ctx, resumeID, record, objectKey, md5Hex); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, NewDatabaseError(resumeID, err.Error())
		}
	}

	// 分块并嵌入
	chunks := parser.BuildResumeChunks(resumeID, record)
	span.SetAttributes(attribute.Int("resume.chunk_count", len(chunks)))

	var pointIDs []string
	if len(chunks) > 0 {
		vectors, err := p.Embedder.EmbedStrings(ctx, parser.ChunkTexts(chunks))
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, NewEmbeddingError(resumeID, err.Error())
		}

		pointIDs, err = p.VectorIndex.UpsertChunkVectors(ctx, chunks, vectors)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, NewVectorWriteError(resumeID, err.Error())
		}
	}

	// 处理成功后才记录MD5，失败的文件可以重新提交
	if p.DedupStore != nil {
		if err := p.DedupStore.RecordRawFileMD5(ctx, md5Hex, resumeID); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("resume_id", resumeID).Msg("记录文件MD5失败")
		}
	}

	duration := time.Since(startTime)
	logger.Ctx(ctx).Info().
		Str("resume_id", resumeID).
		Int("chunk_count", len(chunks)).
		Int("point_count", len(pointIDs)).
		Dur("duration", duration).
		Msg("简历处理完成")

	span.SetStatus(codes.Ok, "")
	return &ProcessResult{
		ResumeID:   resumeID,
		ChunkCount: len(chunks),
		PointIDs:   pointIDs,
		Record:     record,
		Meta:       meta,
	}, nil
}

// SearchResumes 对索引执行语义检索
// summarize为true时附带一段针对查询的模型摘要
func (p *ResumeProcessor) SearchResumes(ctx context.Context, query string, limit int, summarize bool) (*SearchOutput, error) {
	ctx, span := processorTracer.Start(ctx, "ResumeProcessor.SearchResumes")
	defer span.End()

	span.SetAttributes(
		attribute.Int("search.limit", limit),
		attribute.Bool("search.summarize", summarize),
	)

	query = strings.TrimSpace(query)
	if query == "" {
		err := fmt.Errorf("%w: 查询文本不能为空", ErrInvalidSearchQuery)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	vectors, err := p.Embedder.EmbedStrings(ctx, []string{query})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if len(vectors) != 1 {
		err := fmt.Errorf("%w: 期望1条查询向量，得到%d条", ErrEmbeddingFailed, len(vectors))
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	results, err := p.VectorIndex.Search(ctx, vectors[0], limit)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}

	output := &SearchOutput{Results: results}

	if summarize && len(results) > 0 {
		summary, err := p.FieldExtractor.SummarizeSearchResults(ctx, query, results)
		if err != nil {
			// 摘要是锦上添花，失败不影响检索结果本身
			logger.Ctx(ctx).Warn().Err(err).Msg("检索结果摘要生成失败")
		} else {
			output.Summary = summary
		}
	}

	span.SetAttributes(attribute.Int("search.results.count", len(results)))
	span.SetStatus(codes.Ok, "")
	return output, nil
}

// GetResume 取回已入库的简历及其子记录
func (p *ResumeProcessor) GetResume(ctx context.Context, resumeID string) (*models.Resume, error) {
	if p.ResumeStore == nil {
		return nil, fmt.Errorf("%w: 未配置关系数据库", ErrDatabaseFailed)
	}

	resume, err := p.ResumeStore.GetResumeByID(ctx, resumeID)
	if err != nil {
		if errors.Is(err, storage.ErrResumeNotFound) {
			return nil, ErrResumeNotFound
		}
		return nil, NewDatabaseError(resumeID, err.Error())
	}
	return resume, nil
}

// fileExtension 取文件扩展名（带点），无扩展名时默认为.pdf
func fileExtension(filename string) string {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 || idx == len(filename)-1 {
		return ".pdf"
	}
	return strings.ToLower(filename[idx:])
}
