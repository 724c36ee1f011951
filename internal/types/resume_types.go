package types

// SectionType 表示简历分块所属的章节类型
type SectionType string

const (
	// SectionSummary 个人总结章节
	SectionSummary SectionType = "summary"
	// SectionSkill 技能章节（每个技能一个分块）
	SectionSkill SectionType = "skill"
	// SectionExperience 工作经历章节
	SectionExperience SectionType = "experience"
	// SectionEducation 教育经历章节
	SectionEducation SectionType = "education"
)

// Tag 返回嵌入文本使用的章节标签，例如 "[SUMMARY]"
// 标签是被嵌入文本的一部分，用于引导向量偏向章节语义，而不仅是元数据
func (s SectionType) Tag() string {
	switch s {
	case SectionSummary:
		return "[SUMMARY]"
	case SectionSkill:
		return "[SKILL]"
	case SectionExperience:
		return "[EXPERIENCE]"
	case SectionEducation:
		return "[EDUCATION]"
	default:
		return "[UNKNOWN]"
	}
}

// ExperienceEntry 一段工作经历，所有字段都可能缺失
type ExperienceEntry struct {
	Company     *string `json:"company"`
	Role        *string `json:"role"`
	StartDate   *string `json:"start_date"`
	EndDate     *string `json:"end_date"`
	Description *string `json:"description"`
}

// EducationEntry 一段教育经历，所有字段都可能缺失
type EducationEntry struct {
	Institution *string `json:"institution"`
	Degree      *string `json:"degree"`
	StartYear   *string `json:"start_year"`
	EndYear     *string `json:"end_year"`
}

// ResumeRecord 字段抽取服务返回的结构化简历
// 所有标量字段都显式声明为可空，缺失值由分块器统一映射为"跳过该分块"
type ResumeRecord struct {
	Name       *string           `json:"name"`
	Email      *string           `json:"email"`
	Phone      *string           `json:"phone"`
	Summary    *string           `json:"summary"`
	Skills     []string          `json:"skills"`
	Experience []ExperienceEntry `json:"experience"`
	Education  []EducationEntry  `json:"education"`
}

// DisplayName 返回候选人姓名（缺失时为空串）
func (r *ResumeRecord) DisplayName() string {
	if r == nil || r.Name == nil {
		return ""
	}
	return *r.Name
}

// ResumeChunk 简历的一个可独立嵌入、可独立检索的文本单元
type ResumeChunk struct {
	// ChunkID 每个分块新生成的唯一标识，从不复用
	ChunkID string `json:"chunk_id"`
	// Section 章节类型
	Section SectionType `json:"section"`
	// Text 展示文本，已带章节标签前缀，例如 "[SKILL] Go"
	Text string `json:"text"`
	// Metadata 溯源元数据：resume_id、candidate_name、section 以及章节特有字段
	Metadata map[string]interface{} `json:"metadata"`
}

// SearchResultItem 一条语义检索结果
type SearchResultItem struct {
	ID      string                 `json:"id"`
	Score   float32                `json:"score"`
	Payload map[string]interface{} `json:"payload"`
}
