package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DefaultListenAddr      = ":3000"
	DefaultAppEnv          = "production"
	DefaultCookieMaxAge    = 7 * 24 * time.Hour
	DefaultLogDir          = "./storage/logs"
	DefaultLogFileName     = "onsell.log"
	DefaultLogCacheSize    = 64
	DefaultExportPerMinute = 10
	DefaultDatabaseDriver  = "mysql"
	DefaultSessionBackend  = "redis"
)

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Dsn             string        `mapstructure:"dsn"`
	Replicas        []string      `mapstructure:"replicas"`
	TablePrefix     string        `mapstructure:"tablePrefix"`
	MaxIdleConns    int           `mapstructure:"maxIdleConns"`
	MaxOpenConns    int           `mapstructure:"maxOpenConns"`
	ConnMaxIdleTime time.Duration `mapstructure:"connMaxIdleTime"`
	ConnMaxLifetime time.Duration `mapstructure:"connMaxLifetime"`
}

type SessionConfig struct {
	Backend        string        `mapstructure:"backend"`
	SessionMaxAge  time.Duration `mapstructure:"sessionMaxAge"`
	CookieName     string        `mapstructure:"cookieName"`
	CookieHttpOnly bool          `mapstructure:"cookieHttpOnly"`
	CookieSecure   bool          `mapstructure:"cookieSecure"`
}

type RedisConfig struct {
	URL         string `mapstructure:"url"`
	PoolSize    int    `mapstructure:"poolSize"`
	ClusterMode bool   `mapstructure:"clusterMode"`
}

type LogsConfig struct {
	Dir                 string `mapstructure:"dir"`
	FileName            string `mapstructure:"fileName"`
	MaxSizeMB           int    `mapstructure:"maxSizeMB"`
	MaxBackups          int    `mapstructure:"maxBackups"`
	MaxAgeDays          int    `mapstructure:"maxAgeDays"`
	CacheSize           int    `mapstructure:"cacheSize"`
	Watch               bool   `mapstructure:"watch"`
	ExposeErrors        bool   `mapstructure:"exposeErrors"`
	ExportRatePerMinute int    `mapstructure:"exportRatePerMinute"`
}

type Config struct {
	Debug        bool           `mapstructure:"debug"`
	AppEnv       string         `mapstructure:"appEnv"`
	SiteName     string         `mapstructure:"siteName"`
	ListenAddr   string         `mapstructure:"listenAddr"`
	TemplateDir  string         `mapstructure:"templateDir"`
	AllowOrigins []string       `mapstructure:"allowOrigins"`
	Redis        RedisConfig    `mapstructure:"redis"`
	Session      SessionConfig  `mapstructure:"session"`
	Database     DatabaseConfig `mapstructure:"database"`
	Logs         LogsConfig     `mapstructure:"logs"`
}

func (c *Config) Sanitize() error {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.AppEnv == "" {
		c.AppEnv = DefaultAppEnv
	}
	if c.SiteName == "" {
		c.SiteName = "OnSell"
	}
	if c.Session.SessionMaxAge == 0 {
		c.Session.SessionMaxAge = DefaultCookieMaxAge
	}
	if c.Session.Backend == "" {
		c.Session.Backend = DefaultSessionBackend
	}
	if c.Session.Backend != "redis" && c.Session.Backend != "memory" {
		return errors.New("session.backend must be redis or memory")
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DefaultDatabaseDriver
	}
	if c.Database.Driver != "mysql" && c.Database.Driver != "postgres" {
		return errors.New("database.driver must be mysql or postgres")
	}
	if c.Logs.Dir == "" {
		c.Logs.Dir = DefaultLogDir
	}
	if c.Logs.FileName == "" {
		c.Logs.FileName = DefaultLogFileName
	}
	if c.Logs.CacheSize <= 0 {
		c.Logs.CacheSize = DefaultLogCacheSize
	}
	if c.Logs.ExportRatePerMinute <= 0 {
		c.Logs.ExportRatePerMinute = DefaultExportPerMinute
	}
	if c.Debug {
		c.Logs.ExposeErrors = true
	}
	return nil
}

func LoadConfig(filename string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(filename)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Sanitize(); err != nil {
		return nil, err
	}
	return &config, nil
}
