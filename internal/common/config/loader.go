// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configs/config.yaml (optional), merges config.<APP_ENVIRONMENT>.yaml,
// then applies environment overrides and defaults.
func Load() (*Config, error) {
	envFile := loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // optional

	cfg, err := build(v)
	if err != nil {
		return nil, err
	}
	cfg.App.EnvFile = envFile
	if cfg.App.Environment == "" {
		cfg.App.Environment = env
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	envFile := loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg, err := build(v)
	if err != nil {
		return nil, err
	}
	cfg.App.EnvFile = envFile
	return cfg, nil
}

// newViper returns an isolated viper instance with every key registered,
// so AutomaticEnv can fill keys that no config file mentions.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("app.name", "nomination-relay")
	v.SetDefault("app.version", "dev")
	v.SetDefault("app.environment", "")

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.subscribe_path", "/api/subscribe")
	v.SetDefault("server.read_header_timeout", 10000)
	v.SetDefault("server.shutdown_timeout", 15000)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("integrations.klaviyo.private_key", "")
	v.SetDefault("integrations.klaviyo.list_id", "")
	v.SetDefault("integrations.klaviyo.revision", "")
	v.SetDefault("integrations.klaviyo.base_url", "")
	v.SetDefault("integrations.klaviyo.timeout", 0)

	v.SetDefault("integrations.quo.api_key", "")
	v.SetDefault("integrations.quo.phone_number_id", "")
	v.SetDefault("integrations.quo.from_number", "")
	v.SetDefault("integrations.quo.base_url", "")
	v.SetDefault("integrations.quo.timeout", 0)

	v.SetDefault("integrations.aws.region", "")
	v.SetDefault("integrations.aws.sns.enabled", false)
	v.SetDefault("integrations.aws.sns.sender_id", "")
	v.SetDefault("integrations.aws.sns.sms_type", "")

	v.SetDefault("relay.source", "")
	v.SetDefault("relay.default_cause_name", "")
	v.SetDefault("relay.conflict_refresh", "")
	v.SetDefault("relay.success_message", "")
	v.SetDefault("relay.phone.country_code", "")
	v.SetDefault("relay.phone.trunk_prefix", "")
	v.SetDefault("relay.sms.provider", "")
	v.SetDefault("relay.sms.org_name", "")
	v.SetDefault("relay.sms.template", "")
	v.SetDefault("relay.sms.fallback_cause_name", "")

	return v
}

func build(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	overrideEmptyConfig(&cfg)
	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// loadEnvFile loads the first .env found and returns its path.
func loadEnvFile() string {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// expandEnvVars resolves ${VAR} placeholders left in config file values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills values from the conventional variable names the
// deployment platform injects.
func overrideEmptyConfig(cfg *Config) {
	setIfEmpty(&cfg.Integrations.Klaviyo.PrivateKey, "KLAVIYO_PRIVATE_KEY")
	setIfEmpty(&cfg.Integrations.Klaviyo.ListID, "KLAVIYO_LIST_ID")
	setIfEmpty(&cfg.Integrations.Klaviyo.Revision, "KLAVIYO_REVISION")

	setIfEmpty(&cfg.Integrations.Quo.APIKey, "QUO_API_KEY")
	setIfEmpty(&cfg.Integrations.Quo.PhoneNumberID, "QUO_PHONE_NUMBER_ID")
	setIfEmpty(&cfg.Integrations.Quo.FromNumber, "QUO_FROM_NUMBER")

	setIfEmpty(&cfg.Relay.SMS.Provider, "SMS_PROVIDER")
	setIfEmpty(&cfg.Integrations.AWS.Region, "AWS_REGION")

	// PORT always wins, the hosting platform decides it.
	if val := os.Getenv("PORT"); val != "" {
		cfg.Server.Port = val
	}
}

func setIfEmpty(field *string, envName string) {
	if *field != "" {
		return
	}
	if val := os.Getenv(envName); val != "" {
		*field = val
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.Server.SubscribePath == "" {
		cfg.Server.SubscribePath = "/api/subscribe"
	}
	if cfg.Server.ReadHeaderTimeout == 0 {
		cfg.Server.ReadHeaderTimeout = 10000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15000
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	// Klaviyo
	if cfg.Integrations.Klaviyo.Revision == "" {
		cfg.Integrations.Klaviyo.Revision = "2025-04-15"
	}
	if cfg.Integrations.Klaviyo.BaseURL == "" {
		cfg.Integrations.Klaviyo.BaseURL = "https://a.klaviyo.com"
	}
	if cfg.Integrations.Klaviyo.Timeout == 0 {
		cfg.Integrations.Klaviyo.Timeout = 10000
	}

	// Quo
	if cfg.Integrations.Quo.BaseURL == "" {
		cfg.Integrations.Quo.BaseURL = "https://api.openphone.com"
	}
	if cfg.Integrations.Quo.Timeout == 0 {
		cfg.Integrations.Quo.Timeout = 10000
	}

	if cfg.Integrations.AWS.SNS.SMSType == "" {
		cfg.Integrations.AWS.SNS.SMSType = "Transactional"
	}

	// Relay
	if cfg.Relay.Source == "" {
		cfg.Relay.Source = "Cause Nomination Form"
	}
	if cfg.Relay.DefaultCauseName == "" {
		cfg.Relay.DefaultCauseName = "Choose for me"
	}
	if cfg.Relay.ConflictRefresh == "" {
		cfg.Relay.ConflictRefresh = ConflictRefreshFull
	}
	if cfg.Relay.SuccessMessage == "" {
		cfg.Relay.SuccessMessage = "Thank you for your nomination!"
	}
	if cfg.Relay.Phone.CountryCode == "" {
		cfg.Relay.Phone.CountryCode = "1"
	}
	if cfg.Relay.Phone.TrunkPrefix == "" {
		cfg.Relay.Phone.TrunkPrefix = "1"
	}
	if cfg.Relay.SMS.Provider == "" {
		cfg.Relay.SMS.Provider = SMSProviderQuo
	}
	cfg.Relay.SMS.Provider = strings.ToLower(cfg.Relay.SMS.Provider)
	if cfg.Relay.SMS.OrgName == "" {
		cfg.Relay.SMS.OrgName = "Good Laundry"
	}
	if cfg.Relay.SMS.Template == "" {
		cfg.Relay.SMS.Template = DefaultSMSTemplate
	}
	if cfg.Relay.SMS.FallbackCauseName == "" {
		cfg.Relay.SMS.FallbackCauseName = "your suggestion"
	}
}

// DefaultSMSTemplate is the thank-you text sent after a nomination.
const DefaultSMSTemplate = `Hi {{firstName}}! 🎉 Thanks for nominating a cause with {{orgName}}. We'll review "{{causeName}}" and be in touch soon. Questions? Just reply to this text!`

// validateConfig rejects structurally invalid values. Missing secrets are not
// an error here; the relay reports them per request.
func validateConfig(cfg *Config) error {
	switch cfg.Relay.SMS.Provider {
	case SMSProviderQuo, SMSProviderSNS, SMSProviderNone:
	default:
		return fmt.Errorf("relay.sms.provider must be one of quo, sns, none: got %q", cfg.Relay.SMS.Provider)
	}

	switch cfg.Relay.ConflictRefresh {
	case ConflictRefreshFull, ConflictRefreshMetadata:
	default:
		return fmt.Errorf("relay.conflict_refresh must be full or metadata: got %q", cfg.Relay.ConflictRefresh)
	}

	if cfg.Integrations.Klaviyo.Timeout < 0 {
		return fmt.Errorf("integrations.klaviyo.timeout must be positive")
	}
	if cfg.Integrations.Quo.Timeout < 0 {
		return fmt.Errorf("integrations.quo.timeout must be positive")
	}
	if cfg.Server.ReadHeaderTimeout < 0 || cfg.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("server timeouts must be positive")
	}

	if !strings.HasPrefix(cfg.Server.SubscribePath, "/") {
		return fmt.Errorf("server.subscribe_path must start with /: got %q", cfg.Server.SubscribePath)
	}

	if cfg.Relay.SMS.Provider == SMSProviderSNS && cfg.Integrations.AWS.Region == "" {
		return fmt.Errorf("integrations.aws.region is required when relay.sms.provider is sns")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
