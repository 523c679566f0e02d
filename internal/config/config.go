package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ServerConfig 定义本地 Web 客户端 API 的监听配置
type ServerConfig struct {
	Host string // 监听地址，默认 "127.0.0.1"
	Port int    // 监听端口，默认 8787
}

// APIConfig 定义后端临时邮箱 API 的访问配置
type APIConfig struct {
	BaseURL         string        // 后端 API 根地址，例如 "https://api.temp.mail/api"
	Timeout         time.Duration // 单次请求超时，默认 10 秒
	RemoteUsernames bool          // 是否向后端请求随机用户名（否则本地生成）
	UserAgent       string        // 请求头 User-Agent
}

// MailboxConfig 定义当前邮箱身份与收件箱轮询配置
type MailboxConfig struct {
	Domains           []string      // 可选的邮箱域名列表，第一个为默认
	UsernameLength    int           // 本地随机用户名长度，默认 10
	MinUsernameLength int           // 用户名长度提示阈值（仅警告），默认 4
	PollInterval      time.Duration // 收件箱轮询间隔，默认 30 秒
	InactivityTimeout time.Duration // 无操作多久后暂停轮询，默认 5 分钟
	PageSize          int           // 列表每页条数，默认 10
}

// LookupConfig 定义监控列表配置
type LookupConfig struct {
	MaxEntries   int           // 最多保存的地址数，默认 5
	PollInterval time.Duration // 未设置同步频率时的默认轮询间隔，默认 30 秒
	Workers      int           // 并发抓取协程数，默认 4
}

// StorageConfig 定义本地状态持久化配置
type StorageConfig struct {
	Type string // 存储类型: "filesystem"、"sqlite"、"postgres"、"mysql"、"memory"
	Path string // 文件系统存储目录，默认 "./data/state"
	DSN  string // 数据库连接字符串（sqlite 为文件路径）
}

// CounterConfig 定义访客计数器（托管 Redis 兼容 KV）配置
type CounterConfig struct {
	Address  string        // Redis 地址，留空表示禁用计数器
	Password string        // Redis 认证密码
	DB       int           // Redis 数据库编号
	Key      string        // 计数键名，默认 "visitors"
	Limit    int           // 窗口内允许的最大请求数，默认 10
	Window   time.Duration // 限流窗口，默认 10 秒
}

// NotifyConfig 定义通知推送配置
type NotifyConfig struct {
	WebhookURL    string // 通知 Webhook 地址，留空表示不启用
	WebhookSecret string // Webhook 签名密钥
}

// SMTPConfig 定义联系表单的 SMTP 中继配置
type SMTPConfig struct {
	Addr     string // SMTP 中继地址 "host:port"，留空表示只记录日志
	Username string
	Password string
	From     string // 发件人地址
	To       string // 联系表单收件人
}

// CORSConfig 定义跨域资源共享 (CORS) 配置
type CORSConfig struct {
	AllowedOrigins []string // 允许的来源列表，"*" 表示允许所有来源
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
	File        string // 日志文件路径，留空只输出到控制台
}

// Config 是客户端配置的根结构体
type Config struct {
	Server  ServerConfig
	API     APIConfig
	Mailbox MailboxConfig
	Lookup  LookupConfig
	Storage StorageConfig
	Counter CounterConfig
	Notify  NotifyConfig
	SMTP    SMTPConfig
	CORS    CORSConfig
	Log     LogConfig
}

// Load 从环境变量和 .env 文件加载客户端配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量
//  2. .env 文件（如果存在）
//  3. 默认值
//
// 环境变量前缀: TEMPMAIL_，例如 TEMPMAIL_API_BASE_URL、TEMPMAIL_MAILBOX_DOMAINS
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetEnvPrefix("tempmail")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8787)
	v.SetDefault("api.base_url", "http://localhost:8080/api")
	v.SetDefault("api.timeout", "10s")
	v.SetDefault("api.remote_usernames", false)
	v.SetDefault("api.user_agent", "tempmail-client/1.0")
	v.SetDefault("mailbox.domains", "temp.mail")
	v.SetDefault("mailbox.username_length", 10)
	v.SetDefault("mailbox.min_username_length", 4)
	v.SetDefault("mailbox.poll_interval", "30s")
	v.SetDefault("mailbox.inactivity_timeout", "5m")
	v.SetDefault("mailbox.page_size", 10)
	v.SetDefault("lookup.max_entries", 5)
	v.SetDefault("lookup.poll_interval", "30s")
	v.SetDefault("lookup.workers", 4)
	v.SetDefault("storage.type", "filesystem")
	v.SetDefault("storage.path", "./data/state")
	v.SetDefault("storage.dsn", "")
	v.SetDefault("counter.address", "")
	v.SetDefault("counter.password", "")
	v.SetDefault("counter.db", 0)
	v.SetDefault("counter.key", "visitors")
	v.SetDefault("counter.limit", 10)
	v.SetDefault("counter.window", "10s")
	v.SetDefault("notify.webhook_url", "")
	v.SetDefault("notify.webhook_secret", "")
	v.SetDefault("smtp.addr", "")
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "noreply@temp.mail")
	v.SetDefault("smtp.to", "")
	v.SetDefault("cors.allowed_origins", "*")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("log.file", "")

	baseURL := strings.TrimRight(strings.TrimSpace(v.GetString("api.base_url")), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("api.base_url must not be empty")
	}

	apiTimeout, err := time.ParseDuration(v.GetString("api.timeout"))
	if err != nil {
		return nil, fmt.Errorf("invalid api.timeout: %w", err)
	}

	domainList := parseDomains(v.GetString("mailbox.domains"))
	if len(domainList) == 0 {
		return nil, fmt.Errorf("mailbox.domains must not be empty")
	}

	pollInterval, err := time.ParseDuration(v.GetString("mailbox.poll_interval"))
	if err != nil {
		return nil, fmt.Errorf("invalid mailbox.poll_interval: %w", err)
	}
	if pollInterval <= 0 {
		return nil, fmt.Errorf("mailbox.poll_interval must be positive")
	}

	inactivity, err := time.ParseDuration(v.GetString("mailbox.inactivity_timeout"))
	if err != nil {
		return nil, fmt.Errorf("invalid mailbox.inactivity_timeout: %w", err)
	}

	lookupInterval, err := time.ParseDuration(v.GetString("lookup.poll_interval"))
	if err != nil || lookupInterval <= 0 {
		lookupInterval = 30 * time.Second
	}

	counterWindow, err := time.ParseDuration(v.GetString("counter.window"))
	if err != nil || counterWindow <= 0 {
		counterWindow = 10 * time.Second
	}

	usernameLength := v.GetInt("mailbox.username_length")
	if usernameLength <= 0 || usernameLength > 32 {
		usernameLength = 10
	}

	pageSize := v.GetInt("mailbox.page_size")
	if pageSize <= 0 {
		pageSize = 10
	}

	maxEntries := v.GetInt("lookup.max_entries")
	if maxEntries <= 0 {
		maxEntries = 5
	}

	workers := v.GetInt("lookup.workers")
	if workers <= 0 {
		workers = 4
	}

	storageType := strings.ToLower(strings.TrimSpace(v.GetString("storage.type")))
	switch storageType {
	case "filesystem", "sqlite", "postgres", "mysql", "memory":
	default:
		return nil, fmt.Errorf("unsupported storage.type: %s (supported: filesystem, sqlite, postgres, mysql, memory)", storageType)
	}

	corsOrigins := parseList(v.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: v.GetString("server.host"),
			Port: v.GetInt("server.port"),
		},
		API: APIConfig{
			BaseURL:         baseURL,
			Timeout:         apiTimeout,
			RemoteUsernames: v.GetBool("api.remote_usernames"),
			UserAgent:       v.GetString("api.user_agent"),
		},
		Mailbox: MailboxConfig{
			Domains:           domainList,
			UsernameLength:    usernameLength,
			MinUsernameLength: v.GetInt("mailbox.min_username_length"),
			PollInterval:      pollInterval,
			InactivityTimeout: inactivity,
			PageSize:          pageSize,
		},
		Lookup: LookupConfig{
			MaxEntries:   maxEntries,
			PollInterval: lookupInterval,
			Workers:      workers,
		},
		Storage: StorageConfig{
			Type: storageType,
			Path: v.GetString("storage.path"),
			DSN:  v.GetString("storage.dsn"),
		},
		Counter: CounterConfig{
			Address:  v.GetString("counter.address"),
			Password: v.GetString("counter.password"),
			DB:       v.GetInt("counter.db"),
			Key:      v.GetString("counter.key"),
			Limit:    v.GetInt("counter.limit"),
			Window:   counterWindow,
		},
		Notify: NotifyConfig{
			WebhookURL:    v.GetString("notify.webhook_url"),
			WebhookSecret: v.GetString("notify.webhook_secret"),
		},
		SMTP: SMTPConfig{
			Addr:     v.GetString("smtp.addr"),
			Username: v.GetString("smtp.username"),
			Password: v.GetString("smtp.password"),
			From:     v.GetString("smtp.from"),
			To:       v.GetString("smtp.to"),
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		Log: LogConfig{
			Level:       v.GetString("log.level"),
			Development: v.GetBool("log.development"),
			File:        v.GetString("log.file"),
		},
	}

	return cfg, nil
}

// parseDomains 将逗号分隔的域名字符串解析为小写域名数组
func parseDomains(value string) []string {
	out := parseList(value)
	for i := range out {
		out[i] = strings.ToLower(out[i])
	}
	return out
}

// parseList 将逗号分隔的字符串解析为字符串切片，去除空白项
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadEnvFile 尝试加载当前目录或父目录的 .env 文件，文件不存在时静默忽略
func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
