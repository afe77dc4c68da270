package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cozy-creator/medpredict/internal/templates"
	"github.com/cozy-creator/medpredict/internal/utils/pathutil"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	FilesystemLocal = "local"
	FilesystemS3    = "s3"
)

const (
	DBDriverSQLite = "sqlite"
	DBDriverPG     = "pg"
	DBDriverLibSQL = "libsql"
)

const EnvPrefix = "MEDPREDICT"

type Config struct {
	Port           int                    `mapstructure:"port"`
	Host           string                 `mapstructure:"host"`
	Environment    string                 `mapstructure:"environment"`
	HomeDir        string                 `mapstructure:"home_dir"`
	AssetsDir      string                 `mapstructure:"assets_dir"`
	ModelsDir      string                 `mapstructure:"models_dir"`
	TempDir        string                 `mapstructure:"temp_dir"`
	PublicDir      string                 `mapstructure:"public_dir"`
	Runtime        string                 `mapstructure:"runtime"`
	ORTLibraryPath string                 `mapstructure:"ort_library_path"`
	IntraOpThreads int                    `mapstructure:"intra_op_threads"`
	ResizeFilter   string                 `mapstructure:"resize_filter"`
	EnabledModels  []string               `mapstructure:"enabled_models"`
	Models         map[string]ModelConfig `mapstructure:"models"`
	MaxUploadSize  int64                  `mapstructure:"max_upload_size"`
	DisableAuth    bool                   `mapstructure:"disable_auth"`
	ArchiveUploads bool                   `mapstructure:"archive_uploads"`
	FilesystemType string                 `mapstructure:"filesystem_type"`
	UploadWorkers  int                    `mapstructure:"upload_workers"`
	CORS           *CORSConfig            `mapstructure:"cors"`
	S3             *S3Config              `mapstructure:"s3"`
	DB             *DBConfig              `mapstructure:"db"`
	Pulsar         *PulsarConfig          `mapstructure:"pulsar"`
}

// ModelConfig overrides the built-in settings of one classifier.
type ModelConfig struct {
	File      string  `mapstructure:"file"`
	URL       string  `mapstructure:"url"`
	Checksum  string  `mapstructure:"checksum"`
	Threshold float32 `mapstructure:"threshold"`
	ImageSize int     `mapstructure:"image_size"`
	Layout    string  `mapstructure:"layout"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type S3Config struct {
	Folder      string `mapstructure:"folder"`
	Region      string `mapstructure:"region_name"`
	Bucket      string `mapstructure:"bucket_name"`
	AccessKey   string `mapstructure:"access_key"`
	SecretKey   string `mapstructure:"secret_key"`
	PublicUrl   string `mapstructure:"public_url"`
	EndpointUrl string `mapstructure:"endpoint_url"`
}

type DBConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type PulsarConfig struct {
	URL string `mapstructure:"url"`
}

var config *Config

// InitConfig resolves the home directory, writes the default config and env
// templates on first run, loads both and unmarshals the result.
func InitConfig() error {
	homeDir, err := getHomeDir()
	if err != nil {
		return err
	}

	if err := createHomeDirs(homeDir); err != nil {
		return err
	}

	viper.Set("home_dir", homeDir)
	viper.Set("assets_dir", resolveDir("assets_dir", homeDir, "assets"))
	viper.Set("models_dir", resolveDir("models_dir", homeDir, "models"))
	viper.Set("temp_dir", resolveDir("temp_dir", homeDir, "temp"))

	envFile := viper.GetString("env_file")
	if envFile == "" {
		envFile = filepath.Join(homeDir, ".env")
	}

	configFile := viper.GetString("config_file")
	if configFile == "" {
		configFile = filepath.Join(homeDir, "config.yaml")
	}

	if _, err := os.Stat(envFile); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat .env file: %w", err)
		}

		if err := templates.WriteEnv(envFile); err != nil {
			return fmt.Errorf("failed to create .env file: %w", err)
		}
	}

	if _, err := os.Stat(configFile); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config.yaml file: %w", err)
		}

		if err := templates.WriteConfig(configFile); err != nil {
			return fmt.Errorf("failed to create config.yaml file: %w", err)
		}
	}

	// Values already present in the process environment win over the file.
	if err := godotenv.Load(envFile); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}

	setDefaults()
	bindEnvs()
	viper.SetConfigFile(configFile)

	if err := LoadConfig(false); err != nil {
		if errors.As(err, &viper.ConfigFileNotFoundError{}) {
			fmt.Println("No config file found. Using default config.")
		} else {
			return err
		}
	}

	return nil
}

func LoadConfig(reload bool) error {
	if config != nil && !reload {
		return fmt.Errorf("config already loaded")
	}

	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config: %w", err)
	}

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("error unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	config = cfg
	return nil
}

func (c *Config) Validate() error {
	switch strings.ToLower(c.FilesystemType) {
	case FilesystemLocal:
	case FilesystemS3:
		if c.S3 == nil || c.S3.Bucket == "" {
			return fmt.Errorf("filesystem_type is s3 but s3.bucket_name is not set")
		}
	default:
		return fmt.Errorf("invalid filesystem type %s", c.FilesystemType)
	}

	if c.DB != nil && c.DB.DSN != "" {
		switch c.DB.Driver {
		case DBDriverSQLite, DBDriverPG, DBDriverLibSQL:
		default:
			return fmt.Errorf("invalid database driver: %s", c.DB.Driver)
		}
	}

	if !c.DisableAuth && !c.HistoryEnabled() {
		return ErrAuthRequiresDB
	}

	if c.MaxUploadSize <= 0 {
		return fmt.Errorf("max_upload_size must be positive, got %d", c.MaxUploadSize)
	}

	return nil
}

// HistoryEnabled reports whether a database is configured.
func (c *Config) HistoryEnabled() bool {
	return c.DB != nil && c.DB.DSN != ""
}

func (c *Config) AllowedOrigins() []string {
	if c.CORS == nil {
		return nil
	}
	return c.CORS.AllowedOrigins
}

func IsLoaded() bool {
	return config != nil
}

func GetConfig() *Config {
	return config
}

func MustGetConfig() *Config {
	if config == nil {
		panic("config not loaded")
	}

	return config
}

// SetConfig replaces the loaded config; used by tests and embedding callers.
func SetConfig(cfg *Config) {
	config = cfg
}

func setDefaults() {
	viper.SetDefault("port", DefaultPort)
	viper.SetDefault("host", DefaultHost)
	viper.SetDefault("environment", "dev")
	viper.SetDefault("runtime", "go")
	viper.SetDefault("resize_filter", "catmullrom")
	viper.SetDefault("enabled_models", DefaultEnabledModels)
	viper.SetDefault("max_upload_size", DefaultMaxUploadSize)
	viper.SetDefault("disable_auth", true)
	viper.SetDefault("archive_uploads", false)
	viper.SetDefault("filesystem_type", FilesystemLocal)
	viper.SetDefault("upload_workers", 10)
	viper.SetDefault("cors.allowed_origins", DefaultAllowedOrigins)
	viper.SetDefault("db.driver", DBDriverSQLite)
}

func bindEnvs() {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	// Core settings (MEDPREDICT_ prefix), e.g. MEDPREDICT_PORT
	viper.BindEnv("port")
	viper.BindEnv("host")
	viper.BindEnv("environment")
	viper.BindEnv("runtime")
	viper.BindEnv("intra_op_threads")
	viper.BindEnv("resize_filter")
	viper.BindEnv("enabled_models")
	viper.BindEnv("max_upload_size")
	viper.BindEnv("disable_auth")
	viper.BindEnv("archive_uploads")
	viper.BindEnv("filesystem_type")
	viper.BindEnv("upload_workers")
	viper.BindEnv("public_dir")

	viper.BindEnv("cors.allowed_origins")
	viper.BindEnv("db.driver")
	viper.BindEnv("db.dsn")
	viper.BindEnv("pulsar.url")

	// e.g. MEDPREDICT_S3_ACCESS_KEY
	viper.BindEnv("s3.access_key")
	viper.BindEnv("s3.secret_key")
	viper.BindEnv("s3.region_name")
	viper.BindEnv("s3.bucket_name")
	viper.BindEnv("s3.folder")
	viper.BindEnv("s3.public_url")
	viper.BindEnv("s3.endpoint_url")

	// Falls back to ONNX Runtime's own variable
	viper.BindEnv("ort_library_path", EnvPrefix+"_ORT_LIBRARY_PATH", "ONNXRUNTIME_SHARED_LIBRARY_PATH")
}

// Returns the home directory path.
// It attempts to retrieve the home directory from the following sources in order:
// 1. The `home` flag from viper.
// 2. The `MEDPREDICT_HOME` environment variable.
// 3. The default home directory.
func getHomeDir() (string, error) {
	homeDir := viper.GetString("home")
	if homeDir == "" {
		homeDir = os.Getenv(EnvPrefix + "_HOME")
		if homeDir == "" {
			homeDir = DefaultHomeDir
		}
	}

	homeDir, err := pathutil.ExpandPath(homeDir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrHomeExpandFailed, err)
	}

	return homeDir, nil
}

func resolveDir(key, homeDir, fallback string) string {
	dir := viper.GetString(key)
	if dir == "" {
		return filepath.Join(homeDir, fallback)
	}

	expanded, err := pathutil.ExpandPath(dir)
	if err != nil {
		return dir
	}
	return expanded
}

func createHomeDirs(homeDir string) error {
	if homeDir == "" {
		return ErrHomeNotSet
	}

	subdirs := []string{"assets", "models", "temp"}
	if err := os.MkdirAll(homeDir, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create home directory: %w", err)
	}

	for _, subdir := range subdirs {
		dir := filepath.Join(homeDir, subdir)
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return fmt.Errorf("failed to create %s directory: %w", subdir, err)
		}
	}

	return nil
}
