package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"clipcast/log"

	"go.uber.org/zap"
)

type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

type AppConfig struct {
	Proxy   string `toml:"proxy"`
	DataDir string `toml:"data_dir"`
}

type TtsConfig struct {
	BaseUrl      string `toml:"base_url"`
	Token        string `toml:"token"`
	DefaultVoice string `toml:"default_voice"`
	// PartConcurrency bounds per-scene synthesis fan-out.
	PartConcurrency int `toml:"part_concurrency"`
}

type UploadConfig struct {
	BaseUrl string `toml:"base_url"`
}

type OssConfig struct {
	Endpoint        string `toml:"endpoint"`
	Region          string `toml:"region"`
	AccessKeyId     string `toml:"access_key_id"`
	AccessKeySecret string `toml:"access_key_secret"`
	Bucket          string `toml:"bucket"`
}

type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

type ExportConfig struct {
	Concurrency int `toml:"concurrency"`
	QueueSize   int `toml:"queue_size"`
}

type Config struct {
	Server ServerConfig `toml:"server"`
	App    AppConfig    `toml:"app"`
	Tts    TtsConfig    `toml:"tts"`
	Upload UploadConfig `toml:"upload"`
	Oss    OssConfig    `toml:"oss"`
	Redis  RedisConfig  `toml:"redis"`
	Export ExportConfig `toml:"export"`
}

var Conf Config

// resolveConfigPath is a seam for tests.
var resolveConfigPath = func() (string, error) {
	return filepath.Join(".", "config", "config.toml"), nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8888,
		},
		App: AppConfig{
			DataDir: "data",
		},
		Tts: TtsConfig{
			DefaultVoice:    "",
			PartConcurrency: 3,
		},
		Export: ExportConfig{
			Concurrency: 2,
			QueueSize:   128,
		},
	}
}

// LoadOrCreateConfig loads config.toml, writing the default file first when it
// does not exist. Returns true when a new file was created.
func LoadOrCreateConfig() (bool, error) {
	path, err := resolveConfigPath()
	if err != nil {
		return false, err
	}

	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		Conf = defaultConfig()
		if err := SaveConfig(); err != nil {
			return false, fmt.Errorf("write default config: %w", err)
		}
		return true, nil
	}

	if _, err := toml.DecodeFile(path, &Conf); err != nil {
		return false, fmt.Errorf("decode config: %w", err)
	}
	return false, nil
}

// LoadConfig loads the config and logs the outcome, returning false on error.
func LoadConfig() bool {
	created, err := LoadOrCreateConfig()
	if err != nil {
		log.GetLogger().Error("failed to load config", zap.Error(err))
		return false
	}
	if created {
		path, _ := resolveConfigPath()
		log.GetLogger().Info("created default config", zap.String("path", path))
	}
	return true
}

// SaveConfig writes Conf back to disk, creating parent directories.
func SaveConfig() error {
	path, err := resolveConfigPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create config file: %w", err)
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(Conf)
}

// CheckConfig validates fields the engine cannot run without.
func CheckConfig() error {
	if Conf.Server.Port <= 0 || Conf.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", Conf.Server.Port)
	}
	if Conf.Tts.PartConcurrency <= 0 {
		Conf.Tts.PartConcurrency = 3
	}
	if Conf.Export.Concurrency <= 0 {
		Conf.Export.Concurrency = 2
	}
	return nil
}
