package processor

import (
	"errors"
	"fmt"
)

// 定义基础错误类型
var (
	ErrInvalidDocument    = errors.New("无法解析的简历文档")
	ErrNoTextContent      = errors.New("简历中没有可提取的文本")
	ErrExtractionFailed   = errors.New("结构化字段抽取失败")
	ErrEmbeddingFailed    = errors.New("生成嵌入向量失败")
	ErrVectorWriteFailed  = errors.New("写入向量索引失败")
	ErrStoreFileFailed    = errors.New("上传原始文件失败")
	ErrDatabaseFailed     = errors.New("数据库操作失败")
	ErrDuplicateResume    = errors.New("简历文件已处理过")
	ErrSearchFailed       = errors.New("语义检索失败")
	ErrResumeNotFound     = errors.New("简历不存在")
	ErrInvalidSearchQuery = errors.New("检索请求不合法")
)

// ResumeProcessError 包含详细错误信息的自定义错误
type ResumeProcessError struct {
	ResumeID string
	Op       string
	BaseErr  error
	Detail   string
}

func (e *ResumeProcessError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (操作:%s, 简历:%s): %s", e.BaseErr, e.Op, e.ResumeID, e.Detail)
	}
	return fmt.Sprintf("%s (操作:%s, 简历:%s)", e.BaseErr, e.Op, e.ResumeID)
}

func (e *ResumeProcessError) Unwrap() error {
	return e.BaseErr
}

// Is 实现 errors.Is 接口以支持错误比较
func (e *ResumeProcessError) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}

// 错误构造函数
func NewStoreFileError(resumeID, detail string) error {
	return &ResumeProcessError{
		ResumeID: resumeID,
		Op:       "store_file",
		BaseErr:  ErrStoreFileFailed,
		Detail:   detail,
	}
}

func NewParseError(resumeID, detail string) error {
	return &ResumeProcessError{
		ResumeID: resumeID,
		Op:       "parse",
		BaseErr:  ErrInvalidDocument,
		Detail:   detail,
	}
}

func NewExtractionError(resumeID, detail string) error {
	return &ResumeProcessError{
		ResumeID: resumeID,
		Op:       "extract_fields",
		BaseErr:  ErrExtractionFailed,
		Detail:   detail,
	}
}

func NewEmbeddingError(resumeID, detail string) error {
	return &ResumeProcessError{
		ResumeID: resumeID,
		Op:       "embed",
		BaseErr:  ErrEmbeddingFailed,
		Detail:   detail,
	}
}

func NewVectorWriteError(resumeID, detail string) error {
	return &ResumeProcessError{
		ResumeID: resumeID,
		Op:       "vector_write",
		BaseErr:  ErrVectorWriteFailed,
		Detail:   detail,
	}
}

func NewDatabaseError(resumeID, detail string) error {
	return &ResumeProcessError{
		ResumeID: resumeID,
		Op:       "database",
		BaseErr:  ErrDatabaseFailed,
		Detail:   detail,
	}
}
