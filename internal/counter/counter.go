package counter

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"tempmail/client/internal/config"
	"tempmail/client/internal/domain"
)

// KV 计数器依赖的最小键值接口
type KV interface {
	Incr(ctx context.Context, key string) (int64, error)
	Get(ctx context.Context, key string) (int64, error)
	Close() error
}

// Result 计数结果；Available 为 false 时前端隐藏计数
type Result struct {
	Count     int64 `json:"count"`
	Available bool  `json:"available"`
}

// Counter 访客计数器
//
// 计数是尽力而为的：远端错误只记录日志，不向调用方报错。
// 本地限流器在窗口内请求过多时直接返回 ErrRateLimited，不访问远端。
type Counter struct {
	kv      KV
	key     string
	limiter *rate.Limiter
	logger  *zap.Logger
}

// New 根据配置创建计数器，未配置地址时返回禁用状态的计数器
func New(cfg config.CounterConfig, logger *zap.Logger) *Counter {
	if logger == nil {
		logger = zap.NewNop()
	}
	var kv KV
	if cfg.Address != "" {
		kv = NewRedisKV(cfg)
	}
	return NewWithKV(kv, cfg, logger)
}

// NewWithKV 使用指定的 KV 实现（测试使用）
func NewWithKV(kv KV, cfg config.CounterConfig, logger *zap.Logger) *Counter {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := cfg.Limit
	if limit <= 0 {
		limit = 10
	}
	window := cfg.Window
	if window <= 0 {
		window = 10 * time.Second
	}
	key := cfg.Key
	if key == "" {
		key = "visitors"
	}

	return &Counter{
		kv:      kv,
		key:     key,
		limiter: rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit),
		logger:  logger.Named("counter"),
	}
}

// Enabled 是否配置了远端存储
func (c *Counter) Enabled() bool {
	return c.kv != nil
}

// Increment 计数加一并返回新值
func (c *Counter) Increment(ctx context.Context) (Result, error) {
	if c.kv == nil {
		return Result{}, nil
	}
	if !c.limiter.Allow() {
		return Result{}, domain.ErrRateLimited
	}

	n, err := c.kv.Incr(ctx, c.key)
	if err != nil {
		c.logger.Warn("visitor counter increment failed", zap.Error(err))
		return Result{}, nil
	}
	return Result{Count: n, Available: true}, nil
}

// Get 读取当前计数
func (c *Counter) Get(ctx context.Context) (Result, error) {
	if c.kv == nil {
		return Result{}, nil
	}
	if !c.limiter.Allow() {
		return Result{}, domain.ErrRateLimited
	}

	n, err := c.kv.Get(ctx, c.key)
	if err != nil {
		c.logger.Warn("visitor counter read failed", zap.Error(err))
		return Result{}, nil
	}
	return Result{Count: n, Available: true}, nil
}

// Close 关闭远端连接
func (c *Counter) Close() error {
	if c.kv == nil {
		return nil
	}
	return c.kv.Close()
}

// RedisKV 基于 go-redis 的 KV 实现
type RedisKV struct {
	rdb *goredis.Client
}

// NewRedisKV 创建 Redis 客户端；连接在首次请求时建立
func NewRedisKV(cfg config.CounterConfig) *RedisKV {
	return &RedisKV{
		rdb: goredis.NewClient(&goredis.Options{
			Addr:         cfg.Address,
			Password:     cfg.Password,
			DB:           cfg.DB,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			PoolSize:     4,
		}),
	}
}

// Incr 原子自增
func (r *RedisKV) Incr(ctx context.Context, key string) (int64, error) {
	n, err := r.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incr: %w", err)
	}
	return n, nil
}

// Get 读取计数，键不存在时为 0
func (r *RedisKV) Get(ctx context.Context, key string) (int64, error) {
	n, err := r.rdb.Get(ctx, key).Int64()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get: %w", err)
	}
	return n, nil
}

// Close 关闭连接
func (r *RedisKV) Close() error {
	return r.rdb.Close()
}
