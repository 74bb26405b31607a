package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"document-service/internal/storage"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	MongoDB  MongoDBConfig  `mapstructure:"mongodb"`
	Redis    RedisConfig    `mapstructure:"redis"`
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
	Consul   ConsulConfig   `mapstructure:"consul"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         string        `mapstructure:"port"`
	ServiceName  string        `mapstructure:"service_name"`
	ServiceID    string        `mapstructure:"service_id"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	BodyLimitMB  int           `mapstructure:"body_limit_mb"`
}

type StorageConfig struct {
	ConnectionString  string `mapstructure:"connection_string"`
	AccountURL        string `mapstructure:"account_url"`
	SASToken          string `mapstructure:"sas_token"`
	ContainerName     string `mapstructure:"container_name"`
	Region            string `mapstructure:"region"`
	PublicBaseURL     string `mapstructure:"public_base_url"`
	PartSizeMB        int    `mapstructure:"part_size_mb"`
	UploadConcurrency int    `mapstructure:"upload_concurrency"`
}

type MongoDBConfig struct {
	URI        string        `mapstructure:"uri"`
	Database   string        `mapstructure:"database"`
	Collection string        `mapstructure:"collection"`
	PoolSize   uint64        `mapstructure:"pool_size"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	UploadLimit  int           `mapstructure:"upload_limit"`
	UploadWindow time.Duration `mapstructure:"upload_window"`
}

type RabbitMQConfig struct {
	URI      string `mapstructure:"uri"`
	Exchange string `mapstructure:"exchange"`
	Queue    string `mapstructure:"queue"`
}

type ConsulConfig struct {
	Address string `mapstructure:"address"`
}

type LogConfig struct {
	Mode string `mapstructure:"mode"`
}

var defaults = map[string]any{
	"server.host":          "0.0.0.0",
	"server.port":          "8080",
	"server.service_name":  "document-service",
	"server.service_id":    "",
	"server.read_timeout":  15 * time.Second,
	"server.write_timeout": 15 * time.Second,
	"server.body_limit_mb": 100,

	"storage.connection_string":  "",
	"storage.account_url":        "",
	"storage.sas_token":          "",
	"storage.container_name":     "assets",
	"storage.region":             "us-east-1",
	"storage.public_base_url":    "",
	"storage.part_size_mb":       8,
	"storage.upload_concurrency": 4,

	"mongodb.uri":        "mongodb://mongodb:27017",
	"mongodb.database":   "document_service",
	"mongodb.collection": "assets",
	"mongodb.pool_size":  100,
	"mongodb.timeout":    10 * time.Second,

	"redis.addr":          "",
	"redis.password":      "",
	"redis.db":            0,
	"redis.upload_limit":  60,
	"redis.upload_window": time.Minute,

	"rabbitmq.uri":      "",
	"rabbitmq.exchange": "document.events",
	"rabbitmq.queue":    "document-service-events",

	"consul.address": "",

	"log.mode": "development",
}

// Load reads configuration from an optional YAML file and the environment.
// Environment variables override the file: storage.container_name is read
// from STORAGE_CONTAINER_NAME.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Server.ServiceID == "" {
		cfg.Server.ServiceID = cfg.Server.ServiceName + "-" + v.GetString("hostname")
		if strings.HasSuffix(cfg.Server.ServiceID, "-") {
			cfg.Server.ServiceID += "1"
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	port, err := strconv.Atoi(c.Server.Port)
	if err != nil || port <= 0 {
		return fmt.Errorf("invalid server.port %q", c.Server.Port)
	}
	if c.Storage.AccountURL != "" && c.Storage.ConnectionString == "" {
		u, err := url.Parse(c.Storage.AccountURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid storage.account_url %q; expected absolute URL like https://account.example.com", c.Storage.AccountURL)
		}
	}
	if c.Storage.Mode() != storage.ModeDisabled && strings.TrimSpace(c.Storage.ContainerName) == "" {
		return fmt.Errorf("storage.container_name is required when storage is configured")
	}
	return nil
}

func (s StorageConfig) Mode() storage.Mode {
	return s.Gateway().Mode()
}

// Gateway converts the loaded section into the gateway's value object.
func (s StorageConfig) Gateway() storage.Config {
	return storage.Config{
		ConnectionString:  strings.TrimSpace(s.ConnectionString),
		AccountURL:        strings.TrimSpace(s.AccountURL),
		SASToken:          strings.TrimSpace(s.SASToken),
		Container:         strings.TrimSpace(s.ContainerName),
		Region:            s.Region,
		PublicBaseURL:     strings.TrimRight(strings.TrimSpace(s.PublicBaseURL), "/"),
		PartSize:          uint64(s.PartSizeMB) * 1024 * 1024,
		UploadConcurrency: uint(s.UploadConcurrency),
	}
}
