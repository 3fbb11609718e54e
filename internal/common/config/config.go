// internal/common/config/config.go
package config

import "strings"

// Config is the main application configuration struct.
type Config struct {
	App          AppConfig         `mapstructure:"app"`
	Server       ServerConfig      `mapstructure:"server"`
	Logging      LoggingConfig     `mapstructure:"logging"`
	Integrations IntegrationConfig `mapstructure:"integrations"`
	Relay        RelayConfig       `mapstructure:"relay"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`

	// EnvFile is the .env file that was loaded, if any.
	EnvFile string `mapstructure:"-"`
}

type ServerConfig struct {
	Port              string `mapstructure:"port"`
	SubscribePath     string `mapstructure:"subscribe_path"`
	ReadHeaderTimeout int    `mapstructure:"read_header_timeout"` // milliseconds
	ShutdownTimeout   int    `mapstructure:"shutdown_timeout"`    // milliseconds
}

// Addr returns the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	if strings.Contains(s.Port, ":") {
		return s.Port
	}
	return ":" + s.Port
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// --- Integrations ---

// IntegrationConfig holds settings for the marketing platform and the SMS providers.
type IntegrationConfig struct {
	Klaviyo KlaviyoConfig `mapstructure:"klaviyo"`
	Quo     QuoConfig     `mapstructure:"quo"`
	AWS     AWSConfig     `mapstructure:"aws"`
}

type KlaviyoConfig struct {
	PrivateKey string `mapstructure:"private_key"`
	ListID     string `mapstructure:"list_id"`
	Revision   string `mapstructure:"revision"`
	BaseURL    string `mapstructure:"base_url"`
	Timeout    int    `mapstructure:"timeout"` // milliseconds
}

// MissingSettings lists the required Klaviyo settings that are empty.
func (k KlaviyoConfig) MissingSettings() []string {
	var missing []string
	if k.PrivateKey == "" {
		missing = append(missing, "KLAVIYO_PRIVATE_KEY")
	}
	if k.ListID == "" {
		missing = append(missing, "KLAVIYO_LIST_ID")
	}
	return missing
}

// Configured reports whether the relay can talk to Klaviyo at all.
func (k KlaviyoConfig) Configured() bool {
	return len(k.MissingSettings()) == 0
}

type QuoConfig struct {
	APIKey        string `mapstructure:"api_key"`
	PhoneNumberID string `mapstructure:"phone_number_id"`
	FromNumber    string `mapstructure:"from_number"`
	BaseURL       string `mapstructure:"base_url"`
	Timeout       int    `mapstructure:"timeout"` // milliseconds
}

// Configured reports whether Quo credentials are present.
func (q QuoConfig) Configured() bool {
	return q.APIKey != ""
}

type AWSConfig struct {
	Region string `mapstructure:"region"`
	SNS    struct {
		Enabled  bool   `mapstructure:"enabled"`
		SenderID string `mapstructure:"sender_id"`
		SMSType  string `mapstructure:"sms_type"`
	} `mapstructure:"sns"`
}

// SNSConfigured reports whether SNS can be used as the SMS provider.
func (a AWSConfig) SNSConfigured() bool {
	return a.SNS.Enabled && a.Region != ""
}

// --- Relay ---

// SMS providers
const (
	SMSProviderQuo  = "quo"
	SMSProviderSNS  = "sns"
	SMSProviderNone = "none"
)

// Conflict refresh policies
const (
	ConflictRefreshFull     = "full"
	ConflictRefreshMetadata = "metadata"
)

// RelayConfig holds the nomination relay behaviour.
type RelayConfig struct {
	Source           string      `mapstructure:"source"`
	DefaultCauseName string      `mapstructure:"default_cause_name"`
	ConflictRefresh  string      `mapstructure:"conflict_refresh"`
	SuccessMessage   string      `mapstructure:"success_message"`
	Phone            PhoneConfig `mapstructure:"phone"`
	SMS              SMSConfig   `mapstructure:"sms"`
}

type PhoneConfig struct {
	CountryCode string `mapstructure:"country_code"`
	TrunkPrefix string `mapstructure:"trunk_prefix"`
}

type SMSConfig struct {
	Provider          string `mapstructure:"provider"`
	OrgName           string `mapstructure:"org_name"`
	Template          string `mapstructure:"template"`
	FallbackCauseName string `mapstructure:"fallback_cause_name"`
}
