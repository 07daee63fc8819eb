package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config knx-resolve（HTTP API）配置
// 所有外部凭据在启动时装配进显式对象，管道内部不读环境变量。
type Config struct {
	HTTP struct {
		Addr string
	}
	Database DatabaseConfig
	Redis    struct {
		Addr     string
		Password string
		DB       int
	}
	CacheEnabled bool
	Log          struct {
		Level  string
		Format string
	}
	Oracle  OracleConfig
	Search  SearchConfig
	Extract ExtractConfig
}

// OracleConfig 产品推断（文本生成 API）配置
type OracleConfig struct {
	APIURL string // messages API base URL
	APIKey string // 为空则禁用推断步骤
	Model  string
}

// SearchConfig 网页检索服务配置
type SearchConfig struct {
	APIURL string
	APIKey string // 为空则 discovery 不触发
}

// ExtractConfig 文档抽取服务配置
type ExtractConfig struct {
	APIURL     string
	ServiceKey string // 为空则 discovery 不触发
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

func Load() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "knxcat")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = parseInt(getEnv("DB_MAX_CONNS", "10"), 10)
	cfg.Database.MaxIdle = parseInt(getEnv("DB_MAX_IDLE", "5"), 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = 0
	cfg.CacheEnabled = getEnv("CACHE_ENABLED", "true") == "true"

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	// 推断接口（可选：没有 key 就跳过推断步骤）
	cfg.Oracle.APIURL = getEnv("ORACLE_API_URL", "https://api.anthropic.com")
	cfg.Oracle.APIKey = getEnv("ORACLE_API_KEY", "")
	cfg.Oracle.Model = getEnv("ORACLE_MODEL", "claude-sonnet-4-5-20250929")

	// discovery 外部服务（两个 key 齐备才会触发）
	cfg.Search.APIURL = getEnv("SEARCH_API_URL", "https://google.serper.dev")
	cfg.Search.APIKey = getEnv("SEARCH_API_KEY", "")
	cfg.Extract.APIURL = getEnv("EXTRACT_API_URL", "")
	cfg.Extract.ServiceKey = getEnv("EXTRACT_SERVICE_KEY", "")

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}
