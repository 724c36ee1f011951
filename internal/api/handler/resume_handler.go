package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"resume-screener-go/internal/config"
	"resume-screener-go/internal/logger"
	"resume-screener-go/internal/processor"
	"resume-screener-go/internal/storage"
	"resume-screener-go/internal/storage/models"
)

// presignedURLExpiry 原始简历下载链接的有效期
const presignedURLExpiry = 15 * time.Minute

// ResumeHandler 简历接口处理器，协调上传、检索和查询流程
type ResumeHandler struct {
	cfg             *config.Config
	processorModule *processor.ResumeProcessor
	storageManager  *storage.Storage
}

// NewResumeHandler 创建一个新的简历处理器
func NewResumeHandler(cfg *config.Config, processorModule *processor.ResumeProcessor, storageManager *storage.Storage) *ResumeHandler {
	return &ResumeHandler{
		cfg:             cfg,
		processorModule: processorModule,
		storageManager:  storageManager,
	}
}

// ExtractResponse 简历摄入响应
type ExtractResponse struct {
	ResumeID   string `json:"resume_id"`
	Status     string `json:"status"`
	ChunkCount int    `json:"chunk_count,omitempty"`
}

// HandleResumeExtract 处理简历上传与摄入请求
func (h *ResumeHandler) HandleResumeExtract(ctx context.Context, reader io.Reader, filename string) (*ExtractResponse, error) {
	fileBytes, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("读取上传文件内容失败: %w", err)
	}

	result, err := h.processorModule.ProcessResume(ctx, fileBytes, filename)
	if err != nil {
		logger.Error().Err(err).Str("filename", filename).Msg("简历处理失败")
		return nil, err
	}

	status := "PROCESSED"
	if result.Duplicate {
		status = "DUPLICATE_FILE_SKIPPED"
	}
	return &ExtractResponse{
		ResumeID:   result.ResumeID,
		Status:     status,
		ChunkCount: result.ChunkCount,
	}, nil
}

// SearchRequest 语义检索请求
type SearchRequest struct {
	Query     string `json:"query"`
	Limit     int    `json:"limit"`
	Summarize bool   `json:"summarize"`
}

// HandleSearch 处理语义检索请求
func (h *ResumeHandler) HandleSearch(ctx context.Context, req *SearchRequest) (*processor.SearchOutput, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: 请求体不能为空", processor.ErrInvalidSearchQuery)
	}
	return h.processorModule.SearchResumes(ctx, req.Query, req.Limit, req.Summarize)
}

// ResumeDetailResponse 简历详情响应
type ResumeDetailResponse struct {
	ResumeID   string           `json:"resume_id"`
	Name       *string          `json:"name"`
	Email      *string          `json:"email"`
	Phone      *string          `json:"phone"`
	Summary    *string          `json:"summary"`
	Skills     []string         `json:"skills"`
	Experience []ExperienceItem `json:"experience"`
	Education  []EducationItem  `json:"education"`
}

// ExperienceItem 工作经历条目
type ExperienceItem struct {
	Company     *string `json:"company"`
	Role        *string `json:"role"`
	StartDate   *string `json:"start_date"`
	EndDate     *string `json:"end_date"`
	Description *string `json:"description"`
}

// EducationItem 教育经历条目
type EducationItem struct {
	Institution *string `json:"institution"`
	Degree      *string `json:"degree"`
	StartYear   *string `json:"start_year"`
	EndYear     *string `json:"end_year"`
}

// HandleGetResume 查询单份简历详情
func (h *ResumeHandler) HandleGetResume(ctx context.Context, resumeID string) (*ResumeDetailResponse, error) {
	resume, err := h.processorModule.GetResume(ctx, resumeID)
	if err != nil {
		if !errors.Is(err, processor.ErrResumeNotFound) {
			logger.Error().Err(err).Str("resume_id", resumeID).Msg("查询简历失败")
		}
		return nil, err
	}
	return buildResumeDetail(resume), nil
}

// ResumeFileURLResponse 原始简历文件下载链接响应
type ResumeFileURLResponse struct {
	ResumeID  string `json:"resume_id"`
	URL       string `json:"url"`
	ExpiresIn int64  `json:"expires_in_seconds"`
}

// HandleGetResumeFileURL 为已入库简历的原始文件生成限时下载链接
func (h *ResumeHandler) HandleGetResumeFileURL(ctx context.Context, resumeID string) (*ResumeFileURLResponse, error) {
	if h.storageManager == nil || h.storageManager.MinIO == nil {
		return nil, fmt.Errorf("%w: 未配置对象存储", processor.ErrStoreFileFailed)
	}

	resume, err := h.processorModule.GetResume(ctx, resumeID)
	if err != nil {
		return nil, err
	}
	if resume.OriginalFilePath == "" {
		return nil, fmt.Errorf("%w: 该简历没有关联的原始文件", processor.ErrResumeNotFound)
	}

	url, err := h.storageManager.MinIO.GetPresignedURL(ctx, resume.OriginalFilePath, presignedURLExpiry)
	if err != nil {
		logger.Error().Err(err).Str("resume_id", resumeID).Msg("生成简历下载链接失败")
		return nil, fmt.Errorf("%w: %v", processor.ErrStoreFileFailed, err)
	}

	return &ResumeFileURLResponse{
		ResumeID:  resumeID,
		URL:       url,
		ExpiresIn: int64(presignedURLExpiry.Seconds()),
	}, nil
}

// HeartbeatResponse 健康检查响应，附带各后端组件的状态
type HeartbeatResponse struct {
	Status        string            `json:"status"`
	Components    map[string]string `json:"components,omitempty"`
	IndexedPoints int64             `json:"indexed_points,omitempty"`
}

// HandleHeartbeat 健康检查：探测已配置的后端并报告向量索引规模
// 任一组件异常时整体状态降级为degraded，但不返回错误
func (h *ResumeHandler) HandleHeartbeat(ctx context.Context) *HeartbeatResponse {
	resp := &HeartbeatResponse{
		Status:     "ok",
		Components: map[string]string{},
	}
	if h.storageManager == nil {
		return resp
	}

	if h.storageManager.Redis != nil {
		if err := h.storageManager.Redis.Ping(ctx); err != nil {
			resp.Status = "degraded"
			resp.Components["redis"] = err.Error()
		} else {
			resp.Components["redis"] = "ok"
		}
	}

	if h.storageManager.Qdrant != nil {
		count, err := h.storageManager.Qdrant.CountPoints(ctx)
		if err != nil {
			resp.Status = "degraded"
			resp.Components["qdrant"] = err.Error()
		} else {
			resp.Components["qdrant"] = "ok"
			resp.IndexedPoints = count
		}
	}

	return resp
}

// buildResumeDetail 将数据库记录转换为API响应
func buildResumeDetail(resume *models.Resume) *ResumeDetailResponse {
	detail := &ResumeDetailResponse{
		ResumeID:   resume.ResumeID,
		Name:       resume.Name,
		Email:      resume.Email,
		Phone:      resume.Phone,
		Summary:    resume.Summary,
		Skills:     make([]string, 0, len(resume.Skills)),
		Experience: make([]ExperienceItem, 0, len(resume.Experiences)),
		Education:  make([]EducationItem, 0, len(resume.Educations)),
	}

	for _, s := range resume.Skills {
		detail.Skills = append(detail.Skills, s.Skill)
	}
	for _, e := range resume.Experiences {
		detail.Experience = append(detail.Experience, ExperienceItem{
			Company:     e.Company,
			Role:        e.Role,
			StartDate:   e.StartDate,
			EndDate:     e.EndDate,
			Description: e.Description,
		})
	}
	for _, e := range resume.Educations {
		detail.Education = append(detail.Education, EducationItem{
			Institution: e.Institution,
			Degree:      e.Degree,
			StartYear:   e.StartYear,
			EndYear:     e.EndYear,
		})
	}
	return detail
}
