package processor

import (
	"context"
	"io"

	"resume-screener-go/internal/storage/models"
	"resume-screener-go/internal/types"
)

//
// PDF解析相关接口
//

// PDFExtractor PDF提取器接口
type PDFExtractor interface {
	// ExtractFromBytes 从字节数组提取全文和元数据
	ExtractFromBytes(ctx context.Context, data []byte) (string, map[string]interface{}, error)
}

//
// 模型相关接口
//

// FieldExtractor 结构化字段抽取接口
type FieldExtractor interface {
	// ExtractResumeFields 从简历全文抽取结构化简历
	ExtractResumeFields(ctx context.Context, resumeText string) (*types.ResumeRecord, error)

	// SummarizeSearchResults 针对问题对检索结果生成摘要回答
	SummarizeSearchResults(ctx context.Context, question string, results []types.SearchResultItem) (string, error)
}

// TextEmbedder 文本嵌入接口
type TextEmbedder interface {
	// EmbedStrings 将一批文本转换为等长的一批向量
	EmbedStrings(ctx context.Context, texts []string) ([][]float64, error)
}

//
// 存储相关接口
// 与 storage 包的具体实现解耦，便于测试替换
//

// VectorIndex 语义索引接口
type VectorIndex interface {
	UpsertChunkVectors(ctx context.Context, chunks []types.ResumeChunk, vectors [][]float64) ([]string, error)
	Search(ctx context.Context, queryVector []float64, limit int) ([]types.SearchResultItem, error)
}

// FileStore 原始简历文件存储接口
type FileStore interface {
	UploadResumeFileStreaming(ctx context.Context, resumeID, fileExt string, reader io.Reader, fileSize int64) (string, string, error)
}

// DedupStore 文件MD5去重接口
type DedupStore interface {
	CheckRawFileMD5Exists(ctx context.Context, md5Hex string) (bool, error)
	RecordRawFileMD5(ctx context.Context, md5Hex, resumeID string) error
	GetResumeIDByMD5(ctx context.Context, md5Hex string) (string, error)
}

// ResumeStore 简历关系数据库接口
type ResumeStore interface {
	InsertResume(ctx context.Context, resumeID string, record *types.ResumeRecord, filePath, rawFileMD5 string) error
	GetResumeByID(ctx context.Context, resumeID string) (*models.Resume, error)
}
