package parser

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	"resume-screener-go/internal/types"
)

var (
	// whitespaceRe 连续空白（含换行）统一折叠为单个空格
	whitespaceRe = regexp.MustCompile(`\s+`)

	// bulletReplacer 将PDF解码产生的项目符号乱码替换为普通连字符
	// "â€¢" 是UTF-8的"•"被按Latin-1误解码后的形态
	bulletReplacer = strings.NewReplacer(
		"â€¢", "-",
		"•", "-",
	)
)

// CleanText 清洗自由文本：替换项目符号乱码、折叠空白、去除首尾空白
// 只改变表现形式，不改变语义内容
func CleanText(text string) string {
	if text == "" {
		return ""
	}
	text = bulletReplacer.Replace(text)
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// cleanPtr 对可空字段做清洗，nil视为空串
func cleanPtr(s *string) string {
	if s == nil {
		return ""
	}
	return CleanText(*s)
}

// BuildResumeChunks 将结构化简历切分为带章节标签的独立分块
// 顺序固定：summary、skills（按输入顺序）、experience（按输入顺序）、education（按输入顺序）
// 任一字段缺失或清洗后为空时静默跳过对应分块，从不报错；每次调用返回全新的切片
func BuildResumeChunks(resumeID string, record *types.ResumeRecord) []types.ResumeChunk {
	chunks := make([]types.ResumeChunk, 0, 8)
	if record == nil {
		return chunks
	}

	candidateName := strings.TrimSpace(record.DisplayName())

	baseMetadata := func(section types.SectionType) map[string]interface{} {
		return map[string]interface{}{
			"resume_id":      resumeID,
			"candidate_name": candidateName,
			"section":        string(section),
		}
	}

	appendChunk := func(section types.SectionType, text string, metadata map[string]interface{}) {
		chunks = append(chunks, types.ResumeChunk{
			ChunkID:  uuid.NewString(),
			Section:  section,
			Text:     section.Tag() + " " + text,
			Metadata: metadata,
		})
	}

	// 个人总结
	if summary := cleanPtr(record.Summary); summary != "" {
		appendChunk(types.SectionSummary, summary, baseMetadata(types.SectionSummary))
	}

	// 技能：每个非空技能一个分块
	for _, raw := range record.Skills {
		skill := CleanText(raw)
		if skill == "" {
			continue
		}
		metadata := baseMetadata(types.SectionSkill)
		metadata["skill"] = skill
		appendChunk(types.SectionSkill, skill, metadata)
	}

	// 工作经历
	for _, exp := range record.Experience {
		role := cleanPtr(exp.Role)
		company := cleanPtr(exp.Company)
		start := cleanPtr(exp.StartDate)
		end := cleanPtr(exp.EndDate)
		description := cleanPtr(exp.Description)

		var parts []string
		if headline := composeHeadline(role, company); headline != "" {
			parts = append(parts, headline)
		}
		if start != "" || end != "" {
			parts = append(parts, "("+start+" - "+end+")")
		}
		if description != "" {
			parts = append(parts, description)
		}

		// 日期片段单独存在时不构成有意义的分块
		if len(parts) == 0 || (role == "" && company == "" && description == "") {
			continue
		}

		metadata := baseMetadata(types.SectionExperience)
		metadata["company"] = company
		metadata["role"] = role
		metadata["start_date"] = start
		metadata["end_date"] = end
		appendChunk(types.SectionExperience, strings.Join(parts, " "), metadata)
	}

	// 教育经历
	for _, edu := range record.Education {
		degree := cleanPtr(edu.Degree)
		institution := cleanPtr(edu.Institution)
		startYear := cleanPtr(edu.StartYear)
		endYear := cleanPtr(edu.EndYear)

		text := composeHeadline(degree, institution)
		if text == "" {
			continue
		}
		if startYear != "" || endYear != "" {
			text += " (" + startYear + "-" + endYear + ")"
		}

		metadata := baseMetadata(types.SectionEducation)
		metadata["institution"] = institution
		metadata["degree"] = degree
		metadata["start_year"] = startYear
		metadata["end_year"] = endYear
		appendChunk(types.SectionEducation, text, metadata)
	}

	return chunks
}

// composeHeadline 组合 "X at Y" 形式的标题
// 两者都有时用 " at " 连接；只有一个时单独使用，避免悬挂的"at"
func composeHeadline(left, right string) string {
	switch {
	case left != "" && right != "":
		return left + " at " + right
	case left != "":
		return left
	case right != "":
		return right
	default:
		return ""
	}
}

// ChunkTexts 提取分块的展示文本序列，作为嵌入批次的输入
func ChunkTexts(chunks []types.ResumeChunk) []string {
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	return texts
}
