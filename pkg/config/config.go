package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 应用配置
type Config struct {
	App struct {
		Name string `yaml:"name"`
		Env  string `yaml:"env"`
	} `yaml:"app"`

	Database struct {
		Postgres struct {
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			User     string `yaml:"user"`
			Password string `yaml:"password"`
			DBName   string `yaml:"dbname"`
			SSLMode  string `yaml:"sslmode"`
		} `yaml:"postgres"`
	} `yaml:"database"`

	DataSources struct {
		KRX struct {
			BaseURL string        `yaml:"base_url"`
			Timeout time.Duration `yaml:"timeout"`
		} `yaml:"krx"`
		Dart struct {
			APIKey  string        `yaml:"api_key"`
			BaseURL string        `yaml:"base_url"`
			Timeout time.Duration `yaml:"timeout"`
		} `yaml:"dart"`
	} `yaml:"data_sources"`

	Collector struct {
		RequestDelay          time.Duration `yaml:"request_delay"`           // 同一批次内相邻请求间隔
		StatementDelay        time.Duration `yaml:"statement_delay"`         // DART 请求间隔
		CommitBatchSize       int           `yaml:"commit_batch_size"`       // 分块提交大小
		FullWindowDays        int           `yaml:"full_window_days"`        // 全量模式回溯窗口
		SnapshotLookbackDays  int           `yaml:"snapshot_lookback_days"`  // 比率计算市值回看窗口
		MaxStocks             int           `yaml:"max_stocks"`              // 0 表示不限制
	} `yaml:"collector"`

	Scheduler struct {
		Enabled        bool   `yaml:"enabled"`
		KoreaSchedule  string `yaml:"korea_schedule"`
		RatioSchedule  string `yaml:"ratio_schedule"`
	} `yaml:"scheduler"`

	NATS struct {
		URL string `yaml:"url"`
	} `yaml:"nats"`

	API struct {
		Port         string        `yaml:"port"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"api"`
}

// LoadConfig 从文件加载配置
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	applyDefaults(&config)
	overrideFromEnv(&config)

	return &config, nil
}

// applyDefaults 填充缺省值
func applyDefaults(config *Config) {
	if config.Collector.CommitBatchSize <= 0 {
		config.Collector.CommitBatchSize = 100
	}
	if config.Collector.FullWindowDays <= 0 {
		config.Collector.FullWindowDays = 365
	}
	if config.Collector.SnapshotLookbackDays <= 0 {
		config.Collector.SnapshotLookbackDays = 90
	}
	if config.Scheduler.KoreaSchedule == "" {
		config.Scheduler.KoreaSchedule = "0 0 18 * * 1-5" // 周一至周五 18 点，收盘后
	}
	if config.Scheduler.RatioSchedule == "" {
		config.Scheduler.RatioSchedule = "0 0 2 * * 6" // 每周六凌晨重算
	}
	if config.API.Port == "" {
		config.API.Port = "8001"
	}
}

// overrideFromEnv 使用环境变量覆盖配置
func overrideFromEnv(config *Config) {
	if env := os.Getenv("APP_NAME"); env != "" {
		config.App.Name = env
	}
	if env := os.Getenv("APP_ENV"); env != "" {
		config.App.Env = env
	}

	// 数据库配置
	if env := os.Getenv("DB_HOST"); env != "" {
		config.Database.Postgres.Host = env
	}
	if env := os.Getenv("DB_PORT"); env != "" {
		var port int
		fmt.Sscanf(env, "%d", &port)
		if port > 0 {
			config.Database.Postgres.Port = port
		}
	}
	if env := os.Getenv("DB_USER"); env != "" {
		config.Database.Postgres.User = env
	}
	if env := os.Getenv("DB_PASSWORD"); env != "" {
		config.Database.Postgres.Password = env
	}
	if env := os.Getenv("DB_NAME"); env != "" {
		config.Database.Postgres.DBName = env
	}

	// 数据源配置
	if env := os.Getenv("KRX_BASE_URL"); env != "" {
		config.DataSources.KRX.BaseURL = env
	}
	if env := os.Getenv("DART_API_KEY"); env != "" {
		config.DataSources.Dart.APIKey = env
	}
	if env := os.Getenv("DART_BASE_URL"); env != "" {
		config.DataSources.Dart.BaseURL = env
	}

	// NATS配置
	if env := os.Getenv("NATS_URL"); env != "" {
		config.NATS.URL = env
	}

	// API配置
	if env := os.Getenv("API_PORT"); env != "" {
		config.API.Port = env
	}
}

// GetDefaultConfigPath 获取默认配置文件路径
func GetDefaultConfigPath() string {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}

	return fmt.Sprintf("configs/%s/app.yaml", env)
}
