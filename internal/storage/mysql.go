package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"resume-screener-go/internal/config"
	"resume-screener-go/internal/storage/models"
	"resume-screener-go/internal/types"
)

var mysqlTracer = otel.Tracer("resume-screener-go/storage/mysql")

// ErrResumeNotFound 指定ID的简历不存在
var ErrResumeNotFound = errors.New("简历记录不存在")

// GormTracingPlugin 是一个GORM插件，用于向OpenTelemetry中添加数据库操作的追踪点
type GormTracingPlugin struct {
	tracer         trace.Tracer
	dbName         string
	disableErrSkip bool
}

// Name 返回插件名称
func (p *GormTracingPlugin) Name() string {
	return "GormOpenTelemetryPlugin"
}

// Initialize 注册GORM回调以启用追踪
func (p *GormTracingPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()

	if err := cb.Create().Before("gorm:create").Register("otel:before_create", p.before("CREATE")); err != nil {
		return err
	}
	if err := cb.Create().After("gorm:create").Register("otel:after_create", p.after()); err != nil {
		return err
	}

	if err := cb.Query().Before("gorm:query").Register("otel:before_query", p.before("SELECT")); err != nil {
		return err
	}
	if err := cb.Query().After("gorm:query").Register("otel:after_query", p.after()); err != nil {
		return err
	}

	if err := cb.Update().Before("gorm:update").Register("otel:before_update", p.before("UPDATE")); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register("otel:after_update", p.after()); err != nil {
		return err
	}

	if err := cb.Delete().Before("gorm:delete").Register("otel:before_delete", p.before("DELETE")); err != nil {
		return err
	}
	if err := cb.Delete().After("gorm:delete").Register("otel:after_delete", p.after()); err != nil {
		return err
	}

	return nil
}

// before 返回在GORM操作之前执行的回调函数
func (p *GormTracingPlugin) before(operation string) func(db *gorm.DB) {
	return func(db *gorm.DB) {
		if p.disableErrSkip && db.Statement.SkipHooks {
			return
		}

		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}

		tableName := db.Statement.Table
		if tableName == "" {
			tableName = "unknown"
		}

		spanName := fmt.Sprintf("%s %s", operation, tableName)
		opts := []trace.SpanStartOption{
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				semconv.DBSystemMySQL,
				attribute.String("db.name", p.dbName),
				attribute.String("db.operation", operation),
				attribute.String("db.sql.table", tableName),
			),
		}

		newCtx, span := p.tracer.Start(ctx, spanName, opts...)

		// 将span保存在DB上下文中，以便在after回调中使用
		db.Statement.Context = context.WithValue(newCtx, gormSpanKey{}, span)
	}
}

// after 返回在GORM操作之后执行的回调函数
func (p *GormTracingPlugin) after() func(db *gorm.DB) {
	return func(db *gorm.DB) {
		span, ok := db.Statement.Context.Value(gormSpanKey{}).(trace.Span)
		if !ok {
			return
		}
		defer span.End()

		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))

		// ErrRecordNotFound 是业务逻辑正常情况的一部分，不作为错误处理
		if db.Error != nil {
			if errors.Is(db.Error, gorm.ErrRecordNotFound) {
				span.SetAttributes(attribute.String("error.type", "record_not_found"))
				span.SetStatus(codes.Ok, "record not found")
			} else {
				span.SetAttributes(attribute.String("error.type", "database_error"))
				span.RecordError(db.Error)
				span.SetStatus(codes.Error, db.Error.Error())
			}
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}
}

type gormSpanKey struct{}

// NewGormTracingPlugin 创建一个新的GORM追踪插件
func NewGormTracingPlugin(dbName string) *GormTracingPlugin {
	return &GormTracingPlugin{
		tracer:         mysqlTracer,
		dbName:         dbName,
		disableErrSkip: true,
	}
}

// ResumeDatabase 简历关系数据库接口
type ResumeDatabase interface {
	// InsertResume 在一个事务内写入简历主记录与所有子记录
	InsertResume(ctx context.Context, resumeID string, record *types.ResumeRecord, filePath, rawFileMD5 string) error

	// GetResumeByID 取回简历主记录及其子记录
	GetResumeByID(ctx context.Context, resumeID string) (*models.Resume, error)

	// Close 关闭数据库连接
	Close() error
}

// 确保MySQL实现了ResumeDatabase接口
var _ ResumeDatabase = (*MySQL)(nil)

// MySQL 提供关系数据库功能
type MySQL struct {
	db  *gorm.DB
	cfg *config.MySQLConfig
}

// NewMySQL 创建MySQL客户端
func NewMySQL(cfg *config.MySQLConfig) (*MySQL, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MySQL配置不能为空")
	}

	// 构建DSN，添加超时设置
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&timeout=%ds&readTimeout=%ds&writeTimeout=%ds",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
		cfg.ConnectTimeoutSeconds, cfg.ReadTimeoutSeconds, cfg.WriteTimeoutSeconds)

	var logLevel logger.LogLevel
	switch cfg.LogLevel {
	case 1:
		logLevel = logger.Silent
	case 2:
		logLevel = logger.Error
	case 3:
		logLevel = logger.Warn
	default:
		logLevel = logger.Info
	}

	gormConfig := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(logLevel),
		PrepareStmt:                              true,
	}

	db, err := gorm.Open(mysql.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("连接MySQL失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}

	// 连接池参数
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute)

	m := &MySQL{
		db:  db,
		cfg: cfg,
	}

	// 注册OpenTelemetry追踪插件
	if err := db.Use(NewGormTracingPlugin(cfg.Database)); err != nil {
		return nil, fmt.Errorf("注册追踪插件失败: %w", err)
	}

	if err := m.autoMigrateSchema(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("自动迁移数据库结构失败: %w", err)
	}

	log.Println("成功连接到MySQL并自动迁移数据库结构")
	return m, nil
}

// autoMigrateSchema 使用GORM自动迁移数据库表结构
func (m *MySQL) autoMigrateSchema() error {
	silentDB := m.db.Session(&gorm.Session{Logger: m.db.Logger.LogMode(logger.Silent)})

	return silentDB.AutoMigrate(
		&models.Resume{},
		&models.ResumeSkill{},
		&models.ResumeExperience{},
		&models.ResumeEducation{},
	)
}

// DB 返回GORM数据库连接实例
func (m *MySQL) DB() *gorm.DB {
	return m.db
}

// Close 关闭数据库连接
func (m *MySQL) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	return sqlDB.Close()
}

// InsertResume 在一个事务内写入简历主记录与技能、经历、教育子记录
// 任何一步失败整体回滚，不留下半写入的简历
func (m *MySQL) InsertResume(ctx context.Context, resumeID string, record *types.ResumeRecord, filePath, rawFileMD5 string) error {
	ctx, span := mysqlTracer.Start(ctx, "MySQL.InsertResume",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		semconv.DBSystemMySQL,
		attribute.String("resume.id", resumeID),
	)

	if record == nil {
		err := fmt.Errorf("简历记录不能为空")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	rawJSON, err := json.Marshal(record)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("序列化抽取结果失败: %w", err)
	}

	resume := models.Resume{
		ResumeID:         resumeID,
		Name:             record.Name,
		Email:            record.Email,
		Phone:            record.Phone,
		Summary:          record.Summary,
		OriginalFilePath: filePath,
		RawFileMD5:       rawFileMD5,
		RawExtractedJSON: datatypes.JSON(rawJSON),
	}

	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&resume).Error; err != nil {
			return fmt.Errorf("插入简历主记录失败: %w", err)
		}

		for _, skill := range record.Skills {
			if skill == "" {
				continue
			}
			row := models.ResumeSkill{ResumeID: resumeID, Skill: skill}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("插入技能记录失败: %w", err)
			}
		}

		for _, exp := range record.Experience {
			row := models.ResumeExperience{
				ResumeID:    resumeID,
				Company:     exp.Company,
				Role:        exp.Role,
				StartDate:   exp.StartDate,
				EndDate:     exp.EndDate,
				Description: exp.Description,
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("插入工作经历记录失败: %w", err)
			}
		}

		for _, edu := range record.Education {
			row := models.ResumeEducation{
				ResumeID:    resumeID,
				Institution: edu.Institution,
				Degree:      edu.Degree,
				StartYear:   edu.StartYear,
				EndYear:     edu.EndYear,
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("插入教育经历记录失败: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// GetResumeByID 取回简历主记录及其技能、经历、教育子记录
func (m *MySQL) GetResumeByID(ctx context.Context, resumeID string) (*models.Resume, error) {
	ctx, span := mysqlTracer.Start(ctx, "MySQL.GetResumeByID",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		semconv.DBSystemMySQL,
		attribute.String("resume.id", resumeID),
	)

	var resume models.Resume
	err := m.db.WithContext(ctx).
		Preload("Skills").
		Preload("Experiences").
		Preload("Educations").
		First(&resume, "resume_id = ?", resumeID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Ok, "record not found")
			return nil, ErrResumeNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("查询简历失败: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return &resume, nil
}
