package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	App        AppConfig
	API        APIConfig
	Credential CredentialConfig
	Guard      GuardConfig
	Camera     CameraConfig
	Tracing    TracingConfig
}

type AppConfig struct {
	Port               string `validate:"required,numeric"`
	Environment        string `validate:"oneof=development production test"`
	LogFilePath        string `validate:"required"`
	StaticDir          string
	CorsAllowedOrigins string
	SignInPath         string `validate:"required,startswith=/"`
	LiveReloadPort     int    `validate:"min=1,max=65535"`
}

type APIConfig struct {
	BaseURL string `validate:"required,url"`
}

type CredentialConfig struct {
	Backend      string `validate:"oneof=file redis memory"` // store A
	FilePath     string
	RedisURL     string
	KeyPrefix    string
	CookieSecure bool
}

type GuardConfig struct {
	PrivilegedRole string `validate:"required"`
	AppRoot        string `validate:"required,startswith=/"`
	LimitedPrefix  string `validate:"required,startswith=/"`
}

type CameraConfig struct {
	// FrameSource is an image file or a directory of images served as the
	// device camera. Empty means no capture device is present.
	FrameSource string
}

type TracingConfig struct {
	Enabled     bool
	ServiceName string  `validate:"required"`
	Endpoint    string  `validate:"required_if=Enabled true"`
	SampleRatio float64 `validate:"gte=0,lte=1"`
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "8080"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/catalog-lens.log"),
			StaticDir:          getEnv("STATIC_DIR", "./dist"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:8080"),
			SignInPath:         getEnv("SIGNIN_PATH", "/signin"),
			LiveReloadPort:     getEnvAsInt("LIVERELOAD_PORT", 24678),
		},
		API: APIConfig{
			BaseURL: getEnv("API_BASE_URL", "http://localhost:3000"),
		},
		Credential: CredentialConfig{
			Backend:      getEnv("CREDENTIAL_BACKEND", "file"),
			FilePath:     getEnv("CREDENTIAL_FILE", ".lens/session.json"),
			RedisURL:     getEnv("REDIS_URL", "redis://localhost:6379"),
			KeyPrefix:    getEnv("CREDENTIAL_KEY_PREFIX", "catalog-lens:"),
			CookieSecure: getEnvAsBool("COOKIE_SECURE", false),
		},
		Guard: GuardConfig{
			PrivilegedRole: getEnv("GUARD_PRIVILEGED_ROLE", "Admin"),
			AppRoot:        getEnv("GUARD_APP_ROOT", "/app"),
			LimitedPrefix:  getEnv("GUARD_LIMITED_PREFIX", "/app/stock"),
		},
		Camera: CameraConfig{
			FrameSource: getEnv("CAMERA_FRAME_SOURCE", ""),
		},
		Tracing: TracingConfig{
			Enabled:     getEnvAsBool("OTEL_ENABLED", false),
			ServiceName: getEnv("OTEL_SERVICE_NAME", "catalog-lens"),
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			SampleRatio: getEnvAsFloat("OTEL_SAMPLE_RATIO", 1),
		},
	}
}

// Validate checks the loaded values against the struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}
