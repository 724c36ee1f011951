package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config 应用程序配置
type Config struct {
	// Gemini 大模型与嵌入配置
	Gemini GeminiConfig `yaml:"gemini"`

	// Qdrant 向量数据库配置
	Qdrant QdrantConfig `yaml:"qdrant"`

	// MySQL 关系型数据库配置
	MySQL MySQLConfig `yaml:"mysql"`

	// MinIO 对象存储配置
	MinIO MinIOConfig `yaml:"minio"`

	// Redis 键值存储配置
	Redis RedisConfig `yaml:"redis"`

	// Server HTTP服务配置
	Server ServerConfig `yaml:"server"`

	// Logger 日志配置
	Logger LoggerConfig `yaml:"logger"`
}

// GeminiConfig Google Gemini配置
type GeminiConfig struct {
	APIKey string `yaml:"api_key"` // 推荐通过环境变量 GEMINI_API_KEY 注入
	Model  string `yaml:"model"`   // 字段抽取/摘要使用的生成模型

	// RequestsPerMinute 对Gemini接口的限流（生成与嵌入共用一个配额）
	RequestsPerMinute int `yaml:"requests_per_minute"`

	Embedding EmbeddingConfig `yaml:"embedding"`
}

// EmbeddingConfig 嵌入模型配置
type EmbeddingConfig struct {
	Model      string `yaml:"model"`      // 嵌入模型名称
	Dimensions int    `yaml:"dimensions"` // 期望的向量维度（实际以模型首次返回为准）
}

// QdrantConfig Qdrant向量数据库配置
type QdrantConfig struct {
	Endpoint           string `yaml:"endpoint"`             // Qdrant HTTP 服务地址
	Collection         string `yaml:"collection"`           // 集合名称
	Dimension          int    `yaml:"dimension"`            // 向量维度
	APIKey             string `yaml:"api_key,omitempty"`    // (可选) Qdrant API Key
	DefaultSearchLimit int    `yaml:"default_search_limit"` // 默认搜索结果数量
}

// MySQLConfig MySQL配置结构
type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	// 连接池设置
	MaxIdleConns int `yaml:"max_idle_conns"` // 最大空闲连接数
	MaxOpenConns int `yaml:"max_open_conns"` // 最大打开连接数
	// 连接生命周期
	ConnMaxLifetimeMinutes int `yaml:"conn_max_lifetime_minutes"`  // 连接最大生命周期(分钟)
	ConnMaxIdleTimeMinutes int `yaml:"conn_max_idle_time_minutes"` // 空闲连接最大生命周期(分钟)
	// 超时设置
	ConnectTimeoutSeconds int `yaml:"connect_timeout_seconds"` // 连接超时(秒)
	ReadTimeoutSeconds    int `yaml:"read_timeout_seconds"`    // 读取超时(秒)
	WriteTimeoutSeconds   int `yaml:"write_timeout_seconds"`   // 写入超时(秒)
	// 日志设置
	LogLevel int `yaml:"log_level"` // GORM日志级别(1-4)
}

// MinIOConfig MinIO配置结构
type MinIOConfig struct {
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"accessKeyID"`
	SecretAccessKey string `yaml:"secretAccessKey"`
	UseSSL          bool   `yaml:"useSSL"`
	Location        string `yaml:"location"` // 可选，存储桶区域
	// 原始简历存储桶
	OriginalsBucket string `yaml:"originalsBucket"`
	// 原始文件过期天数（0表示不过期）
	OriginalFileExpireDays int `yaml:"original_file_expire_days"`
}

// RedisConfig Redis配置结构
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// 连接池设置
	PoolSize     int `yaml:"pool_size"`      // 连接池大小
	MinIdleConns int `yaml:"min_idle_conns"` // 最小空闲连接数
	// 超时设置
	DialTimeoutSeconds  int `yaml:"dial_timeout_seconds"`  // 连接超时(秒)
	ReadTimeoutSeconds  int `yaml:"read_timeout_seconds"`  // 读取超时(秒)
	WriteTimeoutSeconds int `yaml:"write_timeout_seconds"` // 写入超时(秒)
	// MD5去重记录过期时间(天)
	MD5RecordExpireDays int `yaml:"md5_record_expire_days"`
}

// ServerConfig HTTP服务配置
type ServerConfig struct {
	Address string `yaml:"address"` // 例如 ":8080"
}

// LoggerConfig 日志配置
type LoggerConfig struct {
	Level        string `yaml:"level"`         // debug, info, warn, error
	Format       string `yaml:"format"`        // json, pretty
	TimeFormat   string `yaml:"time_format"`   // 时间格式
	ReportCaller bool   `yaml:"report_caller"` // 是否报告调用位置
}

// LoadConfig 从文件加载配置，并用环境变量覆盖敏感项
func LoadConfig(configPath string) (*Config, error) {
	// 如果未指定配置文件路径，则尝试在默认位置查找
	if configPath == "" {
		searchPaths := []string{
			"config.yaml",
			"./config.yaml",
			"../config.yaml",
			filepath.Join(os.Getenv("HOME"), ".resume-screener", "config.yaml"),
		}

		execPath, err := os.Executable()
		if err == nil {
			searchPaths = append(searchPaths, filepath.Join(filepath.Dir(execPath), "config.yaml"))
		}

		for _, path := range searchPaths {
			if _, err := os.Stat(path); err == nil {
				configPath = path
				break
			}
		}

		// 测试环境下找不到配置文件时返回默认配置
		if configPath == "" {
			if inTestEnv() {
				return createDefaultConfig(), nil
			}
			configPath = "config.yaml"
		}
	}

	if _, err := os.Stat(configPath); err != nil {
		if inTestEnv() {
			return createDefaultConfig(), nil
		}
		return nil, fmt.Errorf("配置文件不存在: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	// 从环境变量覆盖配置（如果存在）
	if envKey := os.Getenv("GEMINI_API_KEY"); envKey != "" {
		config.Gemini.APIKey = envKey
	}
	if envModel := os.Getenv("GEMINI_MODEL_ID"); envModel != "" {
		config.Gemini.Model = envModel
	}
	if envURL := os.Getenv("QDRANT_URL"); envURL != "" {
		config.Qdrant.Endpoint = envURL
	}

	applyDefaults(&config)
	return &config, nil
}

// inTestEnv 粗略检测是否运行在 go test 下
func inTestEnv() bool {
	for _, arg := range os.Args {
		if strings.Contains(arg, "test") {
			return true
		}
	}
	return false
}

// applyDefaults 填充缺省值
func applyDefaults(config *Config) {
	if config.Server.Address == "" {
		config.Server.Address = ":8080"
	}
	if config.Gemini.Model == "" {
		config.Gemini.Model = "gemini-2.5-flash"
	}
	if config.Gemini.Embedding.Model == "" {
		config.Gemini.Embedding.Model = "gemini-embedding-001"
	}
	if config.Gemini.Embedding.Dimensions == 0 {
		config.Gemini.Embedding.Dimensions = 1536
	}
	if config.Gemini.RequestsPerMinute == 0 {
		config.Gemini.RequestsPerMinute = 60
	}
	if config.Qdrant.Endpoint == "" {
		config.Qdrant.Endpoint = "http://localhost:6333"
	}
	if config.Qdrant.Collection == "" {
		config.Qdrant.Collection = "resumes"
	}
	if config.Qdrant.Dimension == 0 {
		config.Qdrant.Dimension = config.Gemini.Embedding.Dimensions
	}
	if config.Qdrant.DefaultSearchLimit == 0 {
		config.Qdrant.DefaultSearchLimit = 5
	}
	if config.Redis.MD5RecordExpireDays == 0 {
		config.Redis.MD5RecordExpireDays = 365
	}
}

// createDefaultConfig 创建一个默认配置，用于测试环境
func createDefaultConfig() *Config {
	config := &Config{}

	config.Gemini.Model = "gemini-2.5-flash"
	config.Gemini.RequestsPerMinute = 60
	config.Gemini.Embedding.Model = "gemini-embedding-001"
	config.Gemini.Embedding.Dimensions = 1536
	if envKey := os.Getenv("GEMINI_API_KEY"); envKey != "" {
		config.Gemini.APIKey = envKey
	} else {
		config.Gemini.APIKey = "test_api_key"
	}

	config.Qdrant.Endpoint = "http://localhost:6333"
	config.Qdrant.Collection = "resumes"
	config.Qdrant.Dimension = 1536
	config.Qdrant.DefaultSearchLimit = 5

	config.MySQL.Host = "localhost"
	config.MySQL.Port = 3306
	config.MySQL.Username = "root"
	config.MySQL.Password = "password"
	config.MySQL.Database = "resume_screener"
	config.MySQL.MaxIdleConns = 10
	config.MySQL.MaxOpenConns = 100
	config.MySQL.ConnMaxLifetimeMinutes = 60
	config.MySQL.ConnMaxIdleTimeMinutes = 30
	config.MySQL.ConnectTimeoutSeconds = 10
	config.MySQL.ReadTimeoutSeconds = 30
	config.MySQL.WriteTimeoutSeconds = 30
	config.MySQL.LogLevel = 4

	config.MinIO.Endpoint = "localhost:9000"
	config.MinIO.AccessKeyID = "minioadmin"
	config.MinIO.SecretAccessKey = "minioadmin123"
	config.MinIO.UseSSL = false
	config.MinIO.OriginalsBucket = "resume-originals"
	config.MinIO.OriginalFileExpireDays = 1095

	config.Redis.Address = "localhost:6379"
	config.Redis.DB = 0
	config.Redis.PoolSize = 10
	config.Redis.MinIdleConns = 2
	config.Redis.DialTimeoutSeconds = 5
	config.Redis.ReadTimeoutSeconds = 3
	config.Redis.WriteTimeoutSeconds = 3
	config.Redis.MD5RecordExpireDays = 365

	config.Server.Address = ":8080"

	config.Logger.Level = "info"
	config.Logger.Format = "pretty"
	config.Logger.TimeFormat = "2006-01-02 15:04:05"
	config.Logger.ReportCaller = true

	return config
}
