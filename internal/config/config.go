package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// 鉴权模式。
const (
	AuthModeAPIKey = "apikey"
	AuthModeJWT    = "jwt"
	AuthModeOff    = "off"
)

// Config 聚合服务启动需要的关键配置。
type Config struct {
	HTTPPort           string
	CORSAllowedOrigins []string
	RateLimitRequests  int
	RateLimitWindow    time.Duration
	DBHost             string
	DBPort             int
	DBUser             string
	DBPassword         string
	DBName             string
	DBSSLMode          string
	// 鉴权配置：调用方身份来自 API Key 或 JWT sub，服务本身不管理会话
	AuthMode  string   // "apikey" / "jwt" / "off"
	APIKeys   []string // AuthMode=apikey 时的有效 key 列表
	JWTSecret string   // AuthMode=jwt 时的 HMAC 密钥
	JWKSURL   string   // AuthMode=jwt 时的远程公钥地址（可选）
	// 对象存储配置
	S3Endpoint  string // S3/MinIO 端点，不含协议
	S3AccessKey string
	S3SecretKey string
	S3Region    string
	S3UseSSL    bool // 是否使用 HTTPS
	// 上传协议配置
	PartSizeBytes     int64         // 分片大小
	PresignExpiry     time.Duration // 签发地址有效期
	PreviewWidth      int           // 缩略图宽度
	PreviewQuality    int           // 缩略图 JPEG 质量 1-100
	SingleUploadLimit int64         // 单次直传大小上限
}

// Load 从环境变量加载配置，并提供默认值。
func Load() (*Config, error) {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	corsOrigins := parseList(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"http://localhost:5173"}
	}

	rateLimitRequests, err := parseIntEnv("RATE_LIMIT_REQUESTS", 120)
	if err != nil {
		return nil, err
	}

	rateLimitWindow, err := parseDurationEnv("RATE_LIMIT_WINDOW", time.Minute)
	if err != nil {
		return nil, err
	}

	dbPort, err := parseIntEnv("DB_PORT", 5432)
	if err != nil {
		return nil, err
	}

	// 鉴权配置
	authMode := strings.ToLower(envOrDefault("AUTH_MODE", AuthModeAPIKey))
	switch authMode {
	case AuthModeAPIKey, AuthModeJWT, AuthModeOff:
	default:
		return nil, fmt.Errorf("AUTH_MODE 取值无效: %s", authMode)
	}
	apiKeys := parseList(os.Getenv("API_KEYS"))
	if authMode == AuthModeAPIKey && len(apiKeys) == 0 {
		// 开发环境默认 key
		apiKeys = []string{"dev-api-key-123456"}
	}

	partSize, err := parseInt64Env("PART_SIZE_BYTES", 5*1024*1024)
	if err != nil {
		return nil, err
	}

	presignExpiry, err := parseDurationEnv("PRESIGN_EXPIRY", time.Hour)
	if err != nil {
		return nil, err
	}

	previewWidth, err := parseIntEnv("PREVIEW_WIDTH", 300)
	if err != nil {
		return nil, err
	}

	previewQuality, err := parseIntEnv("PREVIEW_QUALITY", 90)
	if err != nil {
		return nil, err
	}

	singleUploadLimit, err := parseInt64Env("SINGLE_UPLOAD_LIMIT_BYTES", 100*1024*1024)
	if err != nil {
		return nil, err
	}

	return &Config{
		HTTPPort:           port,
		CORSAllowedOrigins: corsOrigins,
		RateLimitRequests:  rateLimitRequests,
		RateLimitWindow:    rateLimitWindow,
		DBHost:             envOrDefault("DB_HOST", "127.0.0.1"),
		DBPort:             dbPort,
		DBUser:             envOrDefault("DB_USER", "filegate"),
		DBPassword:         envOrDefault("DB_PASSWORD", "filegate"),
		DBName:             envOrDefault("DB_NAME", "filegate"),
		DBSSLMode:          envOrDefault("DB_SSL_MODE", "disable"),
		AuthMode:           authMode,
		APIKeys:            apiKeys,
		JWTSecret:          os.Getenv("JWT_SECRET"),
		JWKSURL:            os.Getenv("JWKS_URL"),
		S3Endpoint:         envOrDefault("S3_ENDPOINT", "localhost:9000"),
		S3AccessKey:        envOrDefault("S3_ACCESS_KEY", "minioadmin"),
		S3SecretKey:        envOrDefault("S3_SECRET_KEY", "minioadmin"),
		S3Region:           envOrDefault("S3_REGION", "us-east-1"),
		S3UseSSL:           parseBoolEnv("S3_USE_SSL", false),
		PartSizeBytes:      partSize,
		PresignExpiry:      presignExpiry,
		PreviewWidth:       previewWidth,
		PreviewQuality:     previewQuality,
		SingleUploadLimit:  singleUploadLimit,
	}, nil
}

func parseList(raw string) []string {
	if raw == "" {
		return nil
	}

	items := strings.Split(raw, ",")
	out := make([]string, 0, len(items))
	for _, item := range items {
		trimmed := strings.TrimSpace(item)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("解析 %s 失败: %w", key, err)
	}
	if value <= 0 {
		return defaultValue, nil
	}
	return value, nil
}

func parseInt64Env(key string, defaultValue int64) (int64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}

	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("解析 %s 失败: %w", key, err)
	}
	if value <= 0 {
		return defaultValue, nil
	}
	return value, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}

	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("解析 %s 失败: %w", key, err)
	}
	if value <= 0 {
		return defaultValue, nil
	}
	return value, nil
}

func parseBoolEnv(key string, defaultValue bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue
	}
	lower := strings.ToLower(raw)
	return lower == "true" || lower == "1" || lower == "yes"
}

// PostgresDSN 生成标准 postgres:// 连接串，供数据访问层直接使用。
func (c *Config) PostgresDSN() string {
	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.DBUser, c.DBPassword),
		Host:   fmt.Sprintf("%s:%d", c.DBHost, c.DBPort),
		Path:   c.DBName,
	}

	q := url.Values{}
	if c.DBSSLMode != "" {
		q.Set("sslmode", c.DBSSLMode)
	}
	u.RawQuery = q.Encode()

	return u.String()
}

func envOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
