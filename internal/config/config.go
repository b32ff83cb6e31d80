// Package config loads runtime configuration from defaults, an optional YAML
// file and FORMULACORE_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/goccy/go-yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every recognised environment variable.
const EnvPrefix = "FORMULACORE_"

// Config is the root configuration document.
type Config struct {
	Storage Storage `koanf:"storage" yaml:"storage"`
	Blob    Blob    `koanf:"blob" yaml:"blob"`
	Log     Log     `koanf:"log" yaml:"log"`
	Batch   Batch   `koanf:"batch" yaml:"batch"`
	Metrics Metrics `koanf:"metrics" yaml:"metrics"`
}

// Storage selects the persistent store backend.
type Storage struct {
	Driver      string `koanf:"driver" yaml:"driver" validate:"oneof=memory sqlite postgres"`
	SQLitePath  string `koanf:"sqlite_path" yaml:"sqlite_path"`
	PostgresDSN string `koanf:"postgres_dsn" yaml:"postgres_dsn"`
}

// Blob selects where batch reports are published.
type Blob struct {
	Driver string `koanf:"driver" yaml:"driver" validate:"oneof=fs s3 memory"`
	FSRoot string `koanf:"fs_root" yaml:"fs_root"`
	S3     S3     `koanf:"s3" yaml:"s3"`
}

// S3 configures the S3 blob driver.
type S3 struct {
	Bucket          string `koanf:"bucket" yaml:"bucket"`
	Region          string `koanf:"region" yaml:"region"`
	Endpoint        string `koanf:"endpoint" yaml:"endpoint" validate:"omitempty,url"`
	AccessKeyID     string `koanf:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `koanf:"secret_access_key" yaml:"secret_access_key"`
	PathStyle       bool   `koanf:"path_style" yaml:"path_style"`
}

// Log configures the process logger.
type Log struct {
	Level string `koanf:"level" yaml:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `koanf:"json" yaml:"json"`
}

// Batch configures document ingestion.
type Batch struct {
	Concurrency int `koanf:"concurrency" yaml:"concurrency" validate:"min=1,max=256"`
}

// Metrics configures the Prometheus recorder.
type Metrics struct {
	Namespace string `koanf:"namespace" yaml:"namespace" validate:"required"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Storage: Storage{Driver: "memory", SQLitePath: "formulacore.db"},
		Blob:    Blob{Driver: "fs", FSRoot: "./blobdata", S3: S3{Region: "us-east-1"}},
		Log:     Log{Level: "info"},
		Batch:   Batch{Concurrency: 4},
		Metrics: Metrics{Namespace: "formulacore"},
	}
}

// envPaths maps environment variables to koanf paths. Unlisted variables are ignored.
var envPaths = map[string]string{
	"FORMULACORE_STORAGE_DRIVER":        "storage.driver",
	"FORMULACORE_SQLITE_PATH":           "storage.sqlite_path",
	"FORMULACORE_POSTGRES_DSN":          "storage.postgres_dsn",
	"FORMULACORE_BLOB_DRIVER":           "blob.driver",
	"FORMULACORE_BLOB_FS_ROOT":          "blob.fs_root",
	"FORMULACORE_BLOB_S3_BUCKET":        "blob.s3.bucket",
	"FORMULACORE_BLOB_S3_REGION":        "blob.s3.region",
	"FORMULACORE_BLOB_S3_ENDPOINT":      "blob.s3.endpoint",
	"FORMULACORE_BLOB_S3_ACCESS_KEY_ID": "blob.s3.access_key_id",
	"FORMULACORE_BLOB_S3_SECRET_KEY":    "blob.s3.secret_access_key",
	"FORMULACORE_BLOB_S3_PATH_STYLE":    "blob.s3.path_style",
	"FORMULACORE_LOG_LEVEL":             "log.level",
	"FORMULACORE_LOG_JSON":              "log.json",
	"FORMULACORE_BATCH_CONCURRENCY":     "batch.concurrency",
	"FORMULACORE_METRICS_NAMESPACE":     "metrics.namespace",
}

// EnvVars returns the recognised environment variable names.
func EnvVars() []string {
	out := make([]string, 0, len(envPaths))
	for k := range envPaths {
		out = append(out, k)
	}
	return out
}

// Option customises Load.
type Option func(*loader)

// WithEnviron replaces os.Environ as the environment source.
func WithEnviron(fn func() []string) Option {
	return func(l *loader) { l.environ = fn }
}

// WithFile layers a YAML file between defaults and the environment. Empty paths are ignored.
func WithFile(path string) Option {
	return func(l *loader) {
		if path != "" {
			l.files = append(l.files, path)
		}
	}
}

type loader struct {
	k       *koanf.Koanf
	environ func() []string
	files   []string
}

// Load resolves the configuration and validates it.
func Load(opts ...Option) (Config, error) {
	l := &loader{k: koanf.New("."), environ: os.Environ}
	for _, opt := range opts {
		opt(l)
	}
	if err := l.k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}
	for _, path := range l.files {
		if err := l.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := l.k.Load(env.Provider(".", env.Opt{
		Prefix:      EnvPrefix,
		EnvironFunc: l.environ,
		TransformFunc: func(key, value string) (string, any) {
			value = strings.TrimSpace(value)
			if value == "" {
				return "", nil
			}
			return envPaths[key], value
		},
	}), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}
	return l.decode()
}

func (l *loader) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	doc := map[string]any{}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := l.k.Load(mapProvider(doc), nil); err != nil {
		return fmt.Errorf("apply config %s: %w", path, err)
	}
	return nil
}

func (l *loader) decode() (Config, error) {
	var cfg Config
	if err := l.k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &cfg,
			TagName:          "koanf",
			DecodeHook:       mapstructure.ComposeDecodeHookFunc(boolStringHook),
		},
	}); err != nil {
		return Config{}, fmt.Errorf("decode configuration: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints and cross-field driver requirements.
func Validate(cfg Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Blob.Driver == "s3" && strings.TrimSpace(cfg.Blob.S3.Bucket) == "" {
		return fmt.Errorf("invalid configuration: blob.s3.bucket required for s3 driver")
	}
	return nil
}

// boolStringHook accepts yes/no/on/off in addition to strconv booleans.
func boolStringHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	s, ok := data.(string)
	if !ok || to.Kind() != reflect.Bool {
		return data, nil
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "", "0", "false", "no", "off":
		return false, nil
	}
	return data, nil
}

// mapProvider feeds an already-parsed nested map into koanf.
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, errors.New("mapProvider does not support ReadBytes")
}

func (m mapProvider) Read() (map[string]any, error) { return map[string]any(m), nil }
