package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config defines server configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	DB      DBConfig      `yaml:"db"`
	Redis   RedisConfig   `yaml:"redis"`
	Log     LogConfig     `yaml:"log"`
	Compare CompareConfig `yaml:"compare"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DBConfig struct {
	Path string `yaml:"path"`
}

// RedisConfig configures the optional distance cache. An empty address
// disables it.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type CompareConfig struct {
	NegligibleArea float64 `yaml:"negligible_area"`
}

// Load reads configuration from an optional YAML file and environment variables.
func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		DB: DBConfig{
			Path: "districtcore.db",
		},
		Log: LogConfig{
			Level: "info",
		},
	}

	if path := os.Getenv("DISTRICTCORE_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if host := os.Getenv("DISTRICTCORE_SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if portStr := os.Getenv("DISTRICTCORE_SERVER_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return Config{}, fmt.Errorf("invalid DISTRICTCORE_SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if dbPath := os.Getenv("DISTRICTCORE_DB_PATH"); dbPath != "" {
		cfg.DB.Path = dbPath
	}
	if addr := os.Getenv("DISTRICTCORE_REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if password := os.Getenv("DISTRICTCORE_REDIS_PASSWORD"); password != "" {
		cfg.Redis.Password = password
	}
	if dbStr := os.Getenv("DISTRICTCORE_REDIS_DB"); dbStr != "" {
		n, err := strconv.Atoi(dbStr)
		if err != nil {
			return Config{}, fmt.Errorf("invalid DISTRICTCORE_REDIS_DB: %w", err)
		}
		cfg.Redis.DB = n
	}
	if level := os.Getenv("DISTRICTCORE_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if areaStr := os.Getenv("DISTRICTCORE_COMPARE_NEGLIGIBLE_AREA"); areaStr != "" {
		area, err := strconv.ParseFloat(areaStr, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid DISTRICTCORE_COMPARE_NEGLIGIBLE_AREA: %w", err)
		}
		cfg.Compare.NegligibleArea = area
	}

	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}
