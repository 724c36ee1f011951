package models

import (
	"time"

	"gorm.io/datatypes"
)

// Resume 简历主表
// ResumeID 是贯穿整条流水线的UUID：对象存储路径、向量payload、API响应都用它
type Resume struct {
	ResumeID         string         `gorm:"type:char(36);primaryKey"`
	Name             *string        `gorm:"type:varchar(255)"`
	Email            *string        `gorm:"type:varchar(255);index:idx_resumes_email"`
	Phone            *string        `gorm:"type:varchar(50)"`
	Summary          *string        `gorm:"type:text"`
	OriginalFilePath string         `gorm:"type:varchar(1024)"`
	RawFileMD5       string         `gorm:"type:char(32);index:idx_resumes_raw_file_md5"`
	RawExtractedJSON datatypes.JSON `gorm:"type:json"` // 模型抽取结果原样留档
	CreatedAt        time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt        time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`

	Skills      []ResumeSkill      `gorm:"foreignKey:ResumeID;references:ResumeID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Experiences []ResumeExperience `gorm:"foreignKey:ResumeID;references:ResumeID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Educations  []ResumeEducation  `gorm:"foreignKey:ResumeID;references:ResumeID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (Resume) TableName() string {
	return "resumes"
}

// ResumeSkill 技能表，每行一个技能
type ResumeSkill struct {
	SkillDBID uint64    `gorm:"primaryKey;autoIncrement"`
	ResumeID  string    `gorm:"type:char(36);not null;index:idx_rsk_resume_id"`
	Skill     string    `gorm:"type:varchar(255);not null"`
	CreatedAt time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
}

func (ResumeSkill) TableName() string {
	return "resume_skills"
}

// ResumeExperience 工作经历表
type ResumeExperience struct {
	ExperienceDBID uint64    `gorm:"primaryKey;autoIncrement"`
	ResumeID       string    `gorm:"type:char(36);not null;index:idx_rex_resume_id"`
	Company        *string   `gorm:"type:varchar(255)"`
	Role           *string   `gorm:"type:varchar(255)"`
	StartDate      *string   `gorm:"type:varchar(50)"` // 原文日期形式多样，保留字符串
	EndDate        *string   `gorm:"type:varchar(50)"`
	Description    *string   `gorm:"type:text"`
	CreatedAt      time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
}

func (ResumeExperience) TableName() string {
	return "resume_experiences"
}

// ResumeEducation 教育经历表
type ResumeEducation struct {
	EducationDBID uint64    `gorm:"primaryKey;autoIncrement"`
	ResumeID      string    `gorm:"type:char(36);not null;index:idx_red_resume_id"`
	Institution   *string   `gorm:"type:varchar(255)"`
	Degree        *string   `gorm:"type:varchar(255)"`
	StartYear     *string   `gorm:"type:varchar(20)"`
	EndYear       *string   `gorm:"type:varchar(20)"`
	CreatedAt     time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
}

func (ResumeEducation) TableName() string {
	return "resume_educations"
}
