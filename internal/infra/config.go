package infra

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config: корневая структура конфигурации утилиты миграции.
type Config struct {
	API       APIConfig                 `mapstructure:"api"`
	Auth      AuthConfig                `mapstructure:"auth"`
	Data      DataConfig                `mapstructure:"data"`
	Dispatch  DispatchConfig            `mapstructure:"dispatch"`
	Quota     QuotaConfig               `mapstructure:"quota"`
	Workflows map[string]WorkflowConfig `mapstructure:"workflows" validate:"dive"`
	Logger    LoggerConfig              `mapstructure:"logger"`
	Metrics   MetricsConfig             `mapstructure:"metrics"`
	Report    ReportConfig              `mapstructure:"report"`
}

// APIConfig описывает целевой provisioning API.
// BaseURL можно не задавать, если он есть в файле учетных данных.
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url" validate:"omitempty,url"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// AuthConfig: client credentials для получения токена.
type AuthConfig struct {
	ClientID        string        `mapstructure:"client_id"`
	ClientSecret    string        `mapstructure:"client_secret"`
	CredentialsFile string        `mapstructure:"credentials_file"` // три строки: id, secret, base url
	Attempts        uint          `mapstructure:"attempts" validate:"gte=1"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"`
	RefreshBefore   time.Duration `mapstructure:"refresh_before"`
}

// DataConfig: где лежат выгрузки и куда писать отчеты.
type DataConfig struct {
	Dir        string `mapstructure:"dir" validate:"required"`
	ResultsDir string `mapstructure:"results_dir" validate:"required"`
}

type DispatchConfig struct {
	Concurrency   int     `mapstructure:"concurrency" validate:"gte=0"`
	RatePerSecond float64 `mapstructure:"rate_per_second" validate:"gte=0"`
	Burst         int     `mapstructure:"burst" validate:"gte=0"`
	DryRun        bool    `mapstructure:"dry_run"`
}

type QuotaConfig struct {
	LimitPerApplication int `mapstructure:"limit_per_application" validate:"gte=0"`
}

// WorkflowConfig перекрывает настройки одного workflow. Нулевые поля не перекрывают.
type WorkflowConfig struct {
	Concurrency int    `mapstructure:"concurrency" validate:"gte=0"`
	Source      string `mapstructure:"source"`
	Result      string `mapstructure:"result"`
}

// LoggerConfig настраивает поведение zap логгера.
type LoggerConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"` // пусто: метрики не пишутся
}

// ReportConfig: дополнительная копия итогов в БД (postgres:// или файл sqlite).
type ReportConfig struct {
	DatabaseURL string `mapstructure:"database_url"`
}

// LoadConfig объединяет .env, файл конфигурации, ENV и дефолты.
// file может быть пустым: тогда config.yaml ищется в . и ./configs.
func LoadConfig(file string) (*Config, error) {
	// .env необязателен, переменные из него не перекрывают уже выставленные
	_ = godotenv.Load(".env")

	v := viper.New()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	// MIGRATE_API_BASE_URL перекроет api.base_url
	v.SetEnvPrefix("MIGRATE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Если файла нет, работаем на ENV и дефолтах
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "")
	v.SetDefault("api.timeout", 60*time.Second)
	v.SetDefault("auth.client_id", "")
	v.SetDefault("auth.client_secret", "")
	v.SetDefault("auth.credentials_file", "credentials.txt")
	v.SetDefault("auth.attempts", 3)
	v.SetDefault("auth.retry_delay", 500*time.Millisecond)
	v.SetDefault("auth.refresh_before", 30*time.Second)
	v.SetDefault("data.dir", "data")
	v.SetDefault("data.results_dir", "results")
	v.SetDefault("dispatch.concurrency", 0) // 0: берется дефолт workflow
	v.SetDefault("dispatch.rate_per_second", 0)
	v.SetDefault("dispatch.burst", 1)
	v.SetDefault("dispatch.dry_run", false)
	v.SetDefault("quota.limit_per_application", 70)
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("report.database_url", "")
}

// Workflow возвращает настройки workflow name поверх def.
// Глобальный dispatch.concurrency перекрывает дефолт, но не явную настройку workflow.
func (c *Config) Workflow(name string, def WorkflowConfig) WorkflowConfig {
	out := def
	if c.Dispatch.Concurrency > 0 {
		out.Concurrency = c.Dispatch.Concurrency
	}
	o, ok := c.Workflows[name]
	if !ok {
		return out
	}
	if o.Concurrency > 0 {
		out.Concurrency = o.Concurrency
	}
	if o.Source != "" {
		out.Source = o.Source
	}
	if o.Result != "" {
		out.Result = o.Result
	}
	return out
}
