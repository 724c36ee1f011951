package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"

	"resume-screener-go/internal/config"
	"resume-screener-go/internal/constants"
)

// ErrNotFound Redis中不存在对应的键
// 包装底层的 redis.Nil 以便调用方不依赖驱动细节
var ErrNotFound = redis.Nil

// Redis 包装go-redis客户端，提供简历文件的MD5去重能力
type Redis struct {
	Client *redis.Client
	config *config.RedisConfig
}

// NewRedisAdapter 创建Redis客户端连接
func NewRedisAdapter(cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis配置不能为空")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis地址不能为空")
	}

	opt := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,

		// 连接池设置
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,

		// 超时设置
		DialTimeout:  time.Duration(cfg.DialTimeoutSeconds) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,
	}

	client := redis.NewClient(opt)

	// 添加OpenTelemetry钩子, 记录所有Redis操作
	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("为Redis添加OpenTelemetry钩子失败: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("连接Redis %s 失败: %w", cfg.Address, err)
	}

	return &Redis{
		Client: client,
		config: cfg,
	}, nil
}

// Close 关闭Redis连接
func (r *Redis) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

// Ping 检查Redis连接
func (r *Redis) Ping(ctx context.Context) error {
	if r.Client == nil {
		return fmt.Errorf("redis客户端未初始化")
	}
	return r.Client.Ping(ctx).Err()
}

// GetMD5ExpireDuration 返回配置的MD5记录过期时间
func (r *Redis) GetMD5ExpireDuration() time.Duration {
	days := r.config.MD5RecordExpireDays
	if days <= 0 {
		days = 365 // 默认1年
	}
	return time.Duration(days) * 24 * time.Hour
}

// CheckRawFileMD5Exists 检查原始文件MD5是否已被处理过
func (r *Redis) CheckRawFileMD5Exists(ctx context.Context, md5Hex string) (bool, error) {
	if r.Client == nil {
		return false, fmt.Errorf("redis客户端未初始化")
	}
	return r.Client.SIsMember(ctx, constants.KeyFileMD5Set, md5Hex).Result()
}

// RecordRawFileMD5 记录已处理文件的MD5及其对应的简历ID
// 集合的过期时间只在首次写入时设置，不随后续写入刷新
func (r *Redis) RecordRawFileMD5(ctx context.Context, md5Hex, resumeID string) error {
	if r.Client == nil {
		return fmt.Errorf("redis客户端未初始化")
	}

	expire := r.GetMD5ExpireDuration()
	mappingKey := fmt.Sprintf(constants.KeyFileMD5ToResumeID, md5Hex)

	pipe := r.Client.Pipeline()
	pipe.SAdd(ctx, constants.KeyFileMD5Set, md5Hex)
	pipe.ExpireNX(ctx, constants.KeyFileMD5Set, expire)
	pipe.Set(ctx, mappingKey, resumeID, expire)
	_, err := pipe.Exec(ctx)
	return err
}

// GetResumeIDByMD5 根据文件MD5查回之前分配的简历ID
// 未找到时返回空串和nil错误
func (r *Redis) GetResumeIDByMD5(ctx context.Context, md5Hex string) (string, error) {
	if r.Client == nil {
		return "", fmt.Errorf("redis客户端未初始化")
	}

	mappingKey := fmt.Sprintf(constants.KeyFileMD5ToResumeID, md5Hex)
	resumeID, err := r.Client.Get(ctx, mappingKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", err
	}
	return resumeID, nil
}
