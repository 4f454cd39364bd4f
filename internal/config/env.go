package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/kazz187/taskdeck/pkg/clog"
)

const (
	ServerNamespace = "TASKD"
	ClientNamespace = "TASKDECK"

	DefaultAPIBase = "http://localhost:3100"
)

type BaseEnv struct {
	Env      string `envconfig:"ENV" default:"local"`
	HTTPHost string `envconfig:"HTTP_HOST" default:""`
	HTTPPort string `envconfig:"HTTP_PORT" default:"3100"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"debug"`
	// CORSOrigins is a comma separated allow list for browser clients.
	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"*"`
}

type StorageEnv struct {
	Type    string `envconfig:"STORAGE_TYPE" default:"local"`
	BaseDir string `envconfig:"STORAGE_BASE_DIR" default:".taskdeck/data"`
	// Watch publishes task.changed events for files edited by hand.
	// Only local storage supports it.
	Watch bool `envconfig:"WATCH_STORAGE" default:"true"`
	// S3 settings (used when Type == "s3")
	S3Bucket string `envconfig:"S3_BUCKET"`
	S3Prefix string `envconfig:"S3_PREFIX" default:"taskdeck/"`
	S3Region string `envconfig:"S3_REGION" default:"ap-northeast-1"`
}

// ServerEnv configures taskd.
type ServerEnv struct {
	BaseEnv
	StorageEnv
}

func LoadServerEnv() (*ServerEnv, error) {
	var env ServerEnv
	if err := envconfig.Process(ServerNamespace, &env); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	switch env.StorageEnv.Type {
	case "local", "s3":
	default:
		return nil, fmt.Errorf("unknown storage type %q", env.StorageEnv.Type)
	}
	return &env, nil
}

func (e *BaseEnv) Addr() string {
	return e.HTTPHost + ":" + e.HTTPPort
}

func (e *BaseEnv) SlogLevel() slog.Level {
	if e == nil {
		return slog.LevelDebug
	}
	return clog.ParseLevel(e.LogLevel)
}

// ClientEnv configures the taskdeck CLI.
type ClientEnv struct {
	APIBase string `envconfig:"API_BASE"`
	// BackendURL is a fallback for APIBase. envconfig also accepts the
	// unprefixed BACKEND_URL.
	BackendURL string        `envconfig:"BACKEND_URL"`
	Timeout    time.Duration `envconfig:"TIMEOUT" default:"10s"`
	LogFile    string        `envconfig:"LOG_FILE"`
	LogLevel   string        `envconfig:"LOG_LEVEL" default:"info"`
}

func LoadClientEnv() (*ClientEnv, error) {
	var env ClientEnv
	if err := envconfig.Process(ClientNamespace, &env); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	return &env, nil
}

// BaseURL resolves the API base: API_BASE, then BACKEND_URL, then the
// local default. Trailing slashes are dropped so paths can be appended.
func (e *ClientEnv) BaseURL() string {
	for _, v := range []string{e.APIBase, e.BackendURL} {
		if v = strings.TrimRight(strings.TrimSpace(v), "/"); v != "" {
			return v
		}
	}
	return DefaultAPIBase
}

func (e *ClientEnv) SlogLevel() slog.Level {
	return clog.ParseLevel(e.LogLevel)
}
