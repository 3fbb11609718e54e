package nominationsubmit

import (
	"fmt"
	"strings"

	"nomination-relay/internal/common/config"
)

type Config struct {
	Path             string
	ListID           string
	Source           string
	DefaultCauseName string
	ConflictRefresh  string
	SuccessMessage   string
	Phone            PhoneFormat
	SMS              SMSTemplate

	// MissingSettings names required Klaviyo settings that are not set.
	// While non-empty every submission fails with CONFIGURATION_MISSING.
	MissingSettings []string
}

type SMSTemplate struct {
	Text              string
	OrgName           string
	FallbackCauseName string
}

func DefaultConfig() *Config {
	return &Config{
		Path:             "/api/subscribe",
		Source:           "Cause Nomination Form",
		DefaultCauseName: "Choose for me",
		ConflictRefresh:  config.ConflictRefreshFull,
		SuccessMessage:   "Thank you for your nomination!",
		Phone:            DefaultPhoneFormat(),
		SMS: SMSTemplate{
			Text:              config.DefaultSMSTemplate,
			OrgName:           "Good Laundry",
			FallbackCauseName: "your suggestion",
		},
	}
}

func createConfigFromAppConfig(appConfig *config.Config, custom *Config) *Config {
	if custom != nil {
		return custom
	}
	cfg := DefaultConfig()
	if appConfig == nil {
		return cfg
	}

	relay := appConfig.Relay
	cfg.Path = appConfig.Server.SubscribePath
	cfg.ListID = appConfig.Integrations.Klaviyo.ListID
	cfg.Source = relay.Source
	cfg.DefaultCauseName = relay.DefaultCauseName
	cfg.ConflictRefresh = relay.ConflictRefresh
	cfg.SuccessMessage = relay.SuccessMessage
	cfg.Phone = PhoneFormat{
		CountryCode: relay.Phone.CountryCode,
		TrunkPrefix: relay.Phone.TrunkPrefix,
	}
	cfg.SMS = SMSTemplate{
		Text:              relay.SMS.Template,
		OrgName:           relay.SMS.OrgName,
		FallbackCauseName: relay.SMS.FallbackCauseName,
	}
	cfg.MissingSettings = appConfig.Integrations.Klaviyo.MissingSettings()
	return cfg
}

func (c *Config) Validate() error {
	if !strings.HasPrefix(c.Path, "/") {
		return fmt.Errorf("path must start with /")
	}
	switch c.ConflictRefresh {
	case config.ConflictRefreshFull, config.ConflictRefreshMetadata:
	default:
		return fmt.Errorf("conflict_refresh must be full or metadata")
	}
	if err := c.Phone.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.SMS.Text) == "" {
		return fmt.Errorf("sms template is required")
	}
	return nil
}
