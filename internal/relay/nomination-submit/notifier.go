package nominationsubmit

import (
	"context"
	"fmt"
	"strings"

	"nomination-relay/internal/common/aws"
	"nomination-relay/internal/common/config"
	"nomination-relay/internal/common/quo"
)

// Notifier sends the follow-up text message.
type Notifier interface {
	Name() string
	Configured() bool
	Send(ctx context.Context, to, body string) error
}

// NewNotifier builds the SMS provider selected by relay.sms.provider. A
// provider without credentials is still returned; it reports Configured() false.
func NewNotifier(ctx context.Context, appConfig *config.Config) (Notifier, error) {
	switch appConfig.Relay.SMS.Provider {
	case config.SMSProviderQuo, "":
		return quo.NewClient(appConfig.Integrations.Quo), nil
	case config.SMSProviderSNS:
		if !appConfig.Integrations.AWS.SNSConfigured() {
			return disabledNotifier{name: config.SMSProviderSNS}, nil
		}
		client, err := aws.NewSNSClient(ctx, appConfig.Integrations.AWS)
		if err != nil {
			return nil, fmt.Errorf("failed to create sns notifier: %w", err)
		}
		return client, nil
	case config.SMSProviderNone:
		return disabledNotifier{name: config.SMSProviderNone}, nil
	default:
		return nil, fmt.Errorf("unknown sms provider %q", appConfig.Relay.SMS.Provider)
	}
}

type disabledNotifier struct {
	name string
}

func (d disabledNotifier) Name() string { return d.name }

func (d disabledNotifier) Configured() bool { return false }

func (d disabledNotifier) Send(context.Context, string, string) error {
	return fmt.Errorf("sms provider %s is not configured", d.name)
}

// smsBody fills the configured template for contact.
func smsBody(tmpl SMSTemplate, contact *Contact) string {
	causeName := contact.CauseName
	if contact.CauseNameDefaulted || causeName == "" {
		causeName = tmpl.FallbackCauseName
	}
	return renderTemplate(tmpl.Text, map[string]interface{}{
		"firstName": contact.FirstName,
		"lastName":  contact.LastName,
		"causeName": causeName,
		"orgName":   tmpl.OrgName,
	})
}

// renderTemplate replaces {{key}} placeholders in one pass, so values are never
// re-read as template text. Unknown placeholders render empty.
func renderTemplate(tmpl string, data map[string]interface{}) string {
	var b strings.Builder
	rest := tmpl
	for {
		start := strings.Index(rest, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(rest[start:], "}}")
		if end == -1 {
			break
		}
		b.WriteString(rest[:start])
		key := rest[start+2 : start+end]
		if v, ok := data[key]; ok && v != nil {
			if s, ok := v.(string); ok {
				b.WriteString(s)
			} else {
				b.WriteString(fmt.Sprintf("%v", v))
			}
		}
		rest = rest[start+end+2:]
	}
	b.WriteString(rest)
	return b.String()
}
