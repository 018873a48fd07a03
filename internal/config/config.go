package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr        string
	Port              string
	Env               string
	GinMode           string
	DatabaseDriver    string
	DatabasePath      string
	SessionSecret     string
	TokenTTL          time.Duration
	Log               LogConfig
	Storage           StorageConfig
	TempImageTTL      time.Duration
	TempSweepInterval time.Duration
	// TagCaseInsensitive 为 true 时 #Go 与 #go 视为同一个标签
	TagCaseInsensitive bool
	SuperRootUserName  string
	SuperRootPassword  string
}

// LogConfig 日志输出配置
type LogConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// StorageConfig 描述 blob 存储后端
type StorageConfig struct {
	Driver           string
	UploadDir        string
	UploadURLPath    string
	S3Endpoint       string
	S3Region         string
	S3Bucket         string
	S3AccessKeyID    string
	S3SecretKey      string
	S3PublicURL      string
	S3BasePath       string
	S3ForcePathStyle bool
}

// DefaultSessionSecret 仅用于本地开发，生产环境必须覆盖
const DefaultSessionSecret = "postdesk-dev-secret"

// ErrDefaultSecret 表示生产环境仍在使用内置的会话密钥
var ErrDefaultSecret = errors.New("SESSION_SECRET must be set to a non-default value when APP_ENV is production")

var envFiles = []string{".env", ".env.local"}

func init() {
	setDefaults(viper.GetViper())
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("APP_ENV", "production")
	v.SetDefault("GIN_MODE", "release")
	v.SetDefault("DATABASE_DRIVER", "sqlite")
	v.SetDefault("DATABASE_PATH", "postdesk.db")
	v.SetDefault("SESSION_SECRET", DefaultSessionSecret)
	v.SetDefault("TOKEN_TTL", "24h")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_MAX_SIZE_MB", 50)
	v.SetDefault("LOG_MAX_BACKUPS", 5)
	v.SetDefault("LOG_MAX_AGE_DAYS", 30)
	v.SetDefault("STORAGE_DRIVER", "local")
	v.SetDefault("UPLOAD_DIR", "web/static/uploads")
	v.SetDefault("UPLOAD_URL_PATH", "/static/uploads")
	v.SetDefault("S3_REGION", "auto")
	v.SetDefault("TEMP_IMAGE_TTL", "12h")
	v.SetDefault("TEMP_SWEEP_INTERVAL", "0")
	v.SetDefault("TAG_CASE_INSENSITIVE", false)
}

// LoadFile 读取 .env 与可选的 YAML 配置文件，之后 Load 即可拿到合并后的值。
func LoadFile(path string) error {
	for _, envFile := range envFiles {
		// 缺失的 .env 文件直接忽略
		_ = godotenv.Load(envFile)
	}

	if strings.TrimSpace(path) == "" {
		return nil
	}

	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// IsProduction 判断是否运行在生产环境
func (c AppConfig) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Env))
	return env == "production" || env == "prod"
}

// Validate 检查服务启动前必须满足的配置。会话密钥同时签发 bearer token，
// 生产环境不允许沿用默认值。
func (c AppConfig) Validate() error {
	if c.IsProduction() && c.SessionSecret == DefaultSessionSecret {
		return ErrDefaultSecret
	}
	return nil
}

// Load 从环境变量读取应用配置，并为缺失项提供安全的默认值。
func Load() AppConfig {
	return fromViper(viper.GetViper())
}

func fromViper(v *viper.Viper) AppConfig {
	v.AutomaticEnv()

	port := str(v, "PORT")
	listenAddr := str(v, "LISTEN_ADDR")
	if listenAddr == "" {
		listenAddr = fmt.Sprintf(":%s", port)
	}

	sessionSecret := str(v, "SESSION_SECRET")
	if sessionSecret == "" {
		sessionSecret = DefaultSessionSecret
	}

	return AppConfig{
		ListenAddr:     listenAddr,
		Port:           port,
		Env:            str(v, "APP_ENV"),
		GinMode:        str(v, "GIN_MODE"),
		DatabaseDriver: strings.ToLower(str(v, "DATABASE_DRIVER")),
		DatabasePath:   str(v, "DATABASE_PATH"),
		SessionSecret:  sessionSecret,
		TokenTTL:       duration(v, "TOKEN_TTL", 24*time.Hour),
		Log: LogConfig{
			Level:      str(v, "LOG_LEVEL"),
			File:       str(v, "LOG_FILE"),
			MaxSizeMB:  v.GetInt("LOG_MAX_SIZE_MB"),
			MaxBackups: v.GetInt("LOG_MAX_BACKUPS"),
			MaxAgeDays: v.GetInt("LOG_MAX_AGE_DAYS"),
		},
		Storage: StorageConfig{
			Driver:           strings.ToLower(str(v, "STORAGE_DRIVER")),
			UploadDir:        str(v, "UPLOAD_DIR"),
			UploadURLPath:    strings.TrimRight(str(v, "UPLOAD_URL_PATH"), "/"),
			S3Endpoint:       str(v, "S3_ENDPOINT"),
			S3Region:         str(v, "S3_REGION"),
			S3Bucket:         str(v, "S3_BUCKET"),
			S3AccessKeyID:    str(v, "S3_ACCESS_KEY_ID"),
			S3SecretKey:      str(v, "S3_SECRET_ACCESS_KEY"),
			S3PublicURL:      strings.TrimRight(str(v, "S3_PUBLIC_URL"), "/"),
			S3BasePath:       str(v, "S3_BASE_PATH"),
			S3ForcePathStyle: v.GetBool("S3_FORCE_PATH_STYLE"),
		},
		TempImageTTL:       duration(v, "TEMP_IMAGE_TTL", 12*time.Hour),
		TempSweepInterval:  duration(v, "TEMP_SWEEP_INTERVAL", 0),
		TagCaseInsensitive: v.GetBool("TAG_CASE_INSENSITIVE"),
		SuperRootUserName:  str(v, "SUPER_ROOT_USER_NAME"),
		SuperRootPassword:  str(v, "SUPER_ROOT_PASSWORD"),
	}
}

func str(v *viper.Viper, key string) string {
	return strings.TrimSpace(v.GetString(key))
}

// duration 接受 "12h" 这类时长，也接受纯数字（按秒计算）。
func duration(v *viper.Viper, key string, fallback time.Duration) time.Duration {
	raw := str(v, key)
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	var seconds int
	if _, err := fmt.Sscanf(raw, "%d", &seconds); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return fallback
}
