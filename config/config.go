package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Upload       UploadConfig       `mapstructure:"upload"`
	Segmentation SegmentationConfig `mapstructure:"segmentation"`
	Output       OutputConfig       `mapstructure:"output"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type UploadConfig struct {
	MaxSize      int64    `mapstructure:"max_size"`
	UploadDir    string   `mapstructure:"upload_dir"`
	AllowedTypes []string `mapstructure:"allowed_types"`
	Cleanup      bool     `mapstructure:"cleanup"`
}

// SegmentationConfig 控制视觉后端
type SegmentationConfig struct {
	WorkingMaxSide  int           `mapstructure:"working_max_side"`
	SaliencyMaxSide int           `mapstructure:"saliency_max_side"`
	Iterations      int           `mapstructure:"iterations"`
	BorderSize      int           `mapstructure:"border_size"`
	MinInstanceArea float64       `mapstructure:"min_instance_area"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// OutputConfig 控制抠图输出文件
type OutputConfig struct {
	Dir           string        `mapstructure:"dir"`
	Prefix        string        `mapstructure:"prefix"`
	Retention     time.Duration `mapstructure:"retention"`
	SweepSchedule string        `mapstructure:"sweep_schedule"`
}

// Load 从 YAML 文件加载配置
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// New 使用默认配置路径加载配置
func New() *Config {
	cfg, err := Load("config.yaml")
	if err != nil {
		return Default()
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.mode", d.Server.Mode)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)

	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.password", d.Redis.Password)
	v.SetDefault("redis.db", d.Redis.DB)
	v.SetDefault("redis.ttl", d.Redis.TTL)

	v.SetDefault("upload.max_size", d.Upload.MaxSize)
	v.SetDefault("upload.upload_dir", d.Upload.UploadDir)
	v.SetDefault("upload.allowed_types", d.Upload.AllowedTypes)
	v.SetDefault("upload.cleanup", d.Upload.Cleanup)

	v.SetDefault("segmentation.working_max_side", d.Segmentation.WorkingMaxSide)
	v.SetDefault("segmentation.saliency_max_side", d.Segmentation.SaliencyMaxSide)
	v.SetDefault("segmentation.iterations", d.Segmentation.Iterations)
	v.SetDefault("segmentation.border_size", d.Segmentation.BorderSize)
	v.SetDefault("segmentation.min_instance_area", d.Segmentation.MinInstanceArea)
	v.SetDefault("segmentation.timeout", d.Segmentation.Timeout)

	v.SetDefault("output.dir", d.Output.Dir)
	v.SetDefault("output.prefix", d.Output.Prefix)
	v.SetDefault("output.retention", d.Output.Retention)
	v.SetDefault("output.sweep_schedule", d.Output.SweepSchedule)
}

// Default 返回内置默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         ":8080",
			Mode:         "debug",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			TTL:      24 * time.Hour,
		},
		Upload: UploadConfig{
			MaxSize:      20 * 1024 * 1024,
			UploadDir:    "./uploads",
			AllowedTypes: []string{"image/jpeg", "image/png", "image/jpg", "image/webp"},
			Cleanup:      true,
		},
		Segmentation: SegmentationConfig{
			WorkingMaxSide:  1200,
			SaliencyMaxSide: 512,
			Iterations:      5,
			BorderSize:      10,
			MinInstanceArea: 0.01,
			Timeout:         0,
		},
		Output: OutputConfig{
			Dir:           os.TempDir(),
			Prefix:        "cutout-",
			Retention:     24 * time.Hour,
			SweepSchedule: "@every 30m",
		},
	}
}
