package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzzerolog "github.com/hertz-contrib/logger/zerolog"
	"github.com/spf13/pflag"

	"resume-screener-go/internal/api/handler"
	"resume-screener-go/internal/api/router"
	"resume-screener-go/internal/config"
	"resume-screener-go/internal/logger"
	"resume-screener-go/internal/parser"
	"resume-screener-go/internal/processor"
	"resume-screener-go/internal/ratelimit"
	"resume-screener-go/internal/storage"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "配置文件路径")
	pflag.Parse()

	// 1. 加载配置文件
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置文件失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志系统
	initLogger(cfg)

	// 3. 初始化存储管理器
	ctx := context.Background()
	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化存储管理器失败")
	}
	defer storageManager.Close()

	// 4. 初始化业务处理器
	resumeProcessor, cleanup, err := initializeProcessor(ctx, cfg, storageManager)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化简历处理器失败")
	}
	defer cleanup()
	logger.Info().Msg("简历处理器初始化成功")

	resumeHandler := handler.NewResumeHandler(cfg, resumeProcessor, storageManager)

	// 5. 创建HTTP服务器并注册路由
	h := server.Default(
		server.WithHostPorts(cfg.Server.Address),
	)
	router.RegisterRoutes(h, resumeHandler)

	// 6. 启动HTTP服务器
	go func() {
		if err := h.Run(); err != nil {
			logger.Fatal().Err(err).Msg("启动HTTP服务器失败")
		}
	}()
	logger.Info().Str("address", cfg.Server.Address).Msg("HTTP服务已启动")

	// 7. 等待终止信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("接收到终止信号，正在优雅退出...")

	// 8. 优雅关闭HTTP服务器
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("服务器关闭失败")
	}

	logger.Info().Msg("优雅退出完成")
}

// initLogger 初始化日志系统
func initLogger(cfg *config.Config) {
	logConfig := logger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
	}
	if logConfig.Level == "" {
		logConfig.Level = "info"
	}
	if logConfig.Format == "" {
		// 生产环境默认JSON格式
		if os.Getenv("ENV") == "production" {
			logConfig.Format = "json"
		} else {
			logConfig.Format = "pretty"
		}
	}
	if logConfig.TimeFormat == "" {
		logConfig.TimeFormat = time.RFC3339
	}

	logger.Init(logConfig)

	logger.Logger = logger.Logger.With().
		Str("app", "resume-screener").
		Logger()

	// 让hertz框架日志走同一套zerolog输出
	hlog.SetLogger(hertzzerolog.From(logger.Logger))
}

// initializeProcessor 组装简历处理流水线
// 返回的cleanup负责释放模型客户端资源
func initializeProcessor(ctx context.Context, cfg *config.Config, storageManager *storage.Storage) (*processor.ResumeProcessor, func(), error) {
	if storageManager == nil {
		return nil, nil, fmt.Errorf("存储管理器未初始化")
	}
	if storageManager.Qdrant == nil {
		return nil, nil, fmt.Errorf("Qdrant实例未初始化")
	}
	if cfg.Gemini.APIKey == "" {
		return nil, nil, fmt.Errorf("未配置Gemini API密钥")
	}

	pdfExtractor := parser.NewPDFLayoutExtractor()

	// 生成与嵌入接口共享同一个Gemini配额
	geminiLimiter := ratelimit.NewLimiter(cfg.Gemini.RequestsPerMinute, 0)

	fieldExtractor, err := parser.NewGeminiExtractor(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model,
		parser.WithExtractorLimiter(geminiLimiter))
	if err != nil {
		return nil, nil, fmt.Errorf("创建字段抽取客户端失败: %w", err)
	}

	embedder, err := parser.NewGeminiEmbedder(ctx, cfg.Gemini.APIKey, cfg.Gemini.Embedding,
		parser.WithEmbedderLimiter(geminiLimiter))
	if err != nil {
		fieldExtractor.Close()
		return nil, nil, fmt.Errorf("创建嵌入器失败: %w", err)
	}

	opts := []processor.Option{
		processor.WithPDFExtractor(pdfExtractor),
		processor.WithFieldExtractor(fieldExtractor),
		processor.WithEmbedder(embedder),
		processor.WithVectorIndex(storageManager.Qdrant),
	}
	if storageManager.MinIO != nil {
		opts = append(opts, processor.WithFileStore(storageManager.MinIO))
	}
	if storageManager.Redis != nil {
		opts = append(opts, processor.WithDedupStore(storageManager.Redis))
	}
	if storageManager.MySQL != nil {
		opts = append(opts, processor.WithResumeStore(storageManager.MySQL))
	}

	cleanup := func() {
		if err := fieldExtractor.Close(); err != nil {
			logger.Warn().Err(err).Msg("关闭字段抽取客户端失败")
		}
		if err := embedder.Close(); err != nil {
			logger.Warn().Err(err).Msg("关闭嵌入器失败")
		}
	}

	return processor.NewResumeProcessor(opts...), cleanup, nil
}
