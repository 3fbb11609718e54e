package nominationsubmit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"nomination-relay/internal/common/config"
	"nomination-relay/internal/common/errors"
	"nomination-relay/internal/common/klaviyo"
	"nomination-relay/internal/common/logger"
	"nomination-relay/internal/common/metrics"
	"nomination-relay/internal/common/observability"
)

// KlaviyoAPI is the slice of the Klaviyo client the relay calls.
type KlaviyoAPI interface {
	CreateProfile(ctx context.Context, profile *klaviyo.Profile) (klaviyo.UpsertOutcome, error)
	UpdateProfile(ctx context.Context, profileID string, profile *klaviyo.Profile) error
	Subscribe(ctx context.Context, sub klaviyo.Subscription) error
	TestConnection(ctx context.Context) error
}

// Profile property names as they appear in Klaviyo.
const (
	propCauseName          = "Cause Name"
	propCauseLocation      = "Cause Location"
	propCauseWhy           = "Cause Why"
	propSource             = "Source"
	propSignupDate         = "signup_date"
	propLastNominationDate = "last_nomination_date"
)

// Step names used in logs and metrics.
const (
	stepProfileCreate = "profile_create"
	stepProfileUpdate = "profile_update"
	stepSubscribe     = "subscribe"
	stepNotify        = "notify"
)

type Service struct {
	config   *Config
	logger   logger.Logger
	klaviyo  KlaviyoAPI
	notifier Notifier
	obs      *observability.Observability
	now      func() time.Time
}

func NewService(deps ServiceDependencies, cfg *Config) *Service {
	if deps.Logger == nil {
		deps.Logger = logger.NewNoOpLogger()
	}
	return &Service{
		config:   cfg,
		logger:   deps.Logger,
		klaviyo:  deps.Klaviyo,
		notifier: deps.Notifier,
		obs:      deps.Observability,
		now:      time.Now,
	}
}

// Execute relays one contact: upsert the profile, subscribe it, then text it.
// Only a missing configuration or a failed upsert is returned as an error.
// Later steps record their failures in the Result.
func (s *Service) Execute(ctx context.Context, contact *Contact) (*Result, error) {
	if len(s.config.MissingSettings) > 0 || s.klaviyo == nil {
		s.logger.Error("Klaviyo is not configured", map[string]interface{}{
			"missing": s.config.MissingSettings,
		})
		return nil, errors.NewConfigurationMissingError(
			"Klaviyo not configured: " + strings.Join(s.config.MissingSettings, ", "))
	}

	result := &Result{PhoneIncluded: contact.Phone != ""}

	outcome, err := s.upsertProfile(ctx, contact)
	if err != nil {
		return nil, err
	}
	result.ProfileID = outcome.ProfileID
	result.ProfileOutcome = outcome.Kind

	if outcome.Kind == klaviyo.OutcomeAlreadyExists {
		s.refreshProfile(ctx, contact, outcome.ProfileID, result)
	}

	s.subscribe(ctx, contact, result)
	s.notify(ctx, contact, result)

	return result, nil
}

func (s *Service) upsertProfile(ctx context.Context, contact *Contact) (klaviyo.UpsertOutcome, error) {
	ctx, span := s.obs.StartSpan(ctx, "klaviyo.profile_create")
	defer span.End()

	profile := klaviyo.NewProfile(contact.Email).
		WithName(contact.FirstName, contact.LastName).
		WithPhone(contact.Phone).
		WithProperty(propCauseName, contact.CauseName).
		WithProperty(propCauseLocation, contact.CauseLocation).
		WithProperty(propCauseWhy, contact.CauseWhy).
		WithProperty(propSource, s.config.Source).
		WithProperty(propSignupDate, s.now().UTC().Format(time.RFC3339))

	outcome, err := s.klaviyo.CreateProfile(ctx, profile)
	if err != nil {
		s.recordStep(ctx, stepProfileCreate, "failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, "profile create failed")
		s.logger.Error("Profile creation failed", map[string]interface{}{
			"email": contact.Email,
			"error": err,
		})
		return klaviyo.UpsertOutcome{}, errors.NewProfileUpsertFailedError(err)
	}

	s.recordStep(ctx, stepProfileCreate, string(outcome.Kind))
	span.SetAttributes(attribute.String("profile.outcome", string(outcome.Kind)))
	s.logger.Info("Profile resolved", map[string]interface{}{
		"email":     contact.Email,
		"profileId": outcome.ProfileID,
		"outcome":   outcome.Kind,
	})
	return outcome, nil
}

// refreshProfile patches an existing profile. Failure is recorded, not returned.
func (s *Service) refreshProfile(ctx context.Context, contact *Contact, profileID string, result *Result) {
	ctx, span := s.obs.StartSpan(ctx, "klaviyo.profile_update")
	defer span.End()

	profile := klaviyo.NewProfile(contact.Email).
		WithName(contact.FirstName, contact.LastName).
		WithPhone(contact.Phone).
		WithProperty(propSource, s.config.Source).
		WithProperty(propLastNominationDate, s.now().UTC().Format(time.RFC3339))

	if s.config.ConflictRefresh == config.ConflictRefreshFull {
		profile.
			WithProperty(propCauseName, contact.CauseName).
			WithProperty(propCauseLocation, contact.CauseLocation).
			WithProperty(propCauseWhy, contact.CauseWhy)
	}

	if err := s.klaviyo.UpdateProfile(ctx, profileID, profile); err != nil {
		stdErr := errors.NewProfileUpdateFailedError(profileID, err)
		result.ProfileUpdateError = err.Error()
		s.recordStep(ctx, stepProfileUpdate, "failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, "profile update failed")
		s.logger.Warn("Profile update failed", map[string]interface{}{
			"profileId": profileID,
			"error":     stdErr,
		})
		return
	}

	result.ProfileUpdated = true
	s.recordStep(ctx, stepProfileUpdate, "success")
	s.logger.Info("Existing profile refreshed", map[string]interface{}{
		"profileId": profileID,
		"policy":    s.config.ConflictRefresh,
	})
}

func (s *Service) subscribe(ctx context.Context, contact *Contact, result *Result) {
	ctx, span := s.obs.StartSpan(ctx, "klaviyo.subscribe")
	defer span.End()

	err := s.klaviyo.Subscribe(ctx, klaviyo.Subscription{
		ListID:       s.config.ListID,
		CustomSource: s.config.Source,
		ProfileID:    result.ProfileID,
		Email:        contact.Email,
		PhoneNumber:  contact.Phone,
	})
	if err != nil {
		stdErr := errors.NewSubscriptionFailedError(err)
		result.SubscriptionError = err.Error()
		s.recordStep(ctx, stepSubscribe, "failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, "subscription failed")
		s.logger.Warn("List subscription failed", map[string]interface{}{
			"profileId": result.ProfileID,
			"listId":    s.config.ListID,
			"error":     stdErr,
		})
		return
	}

	result.Subscribed = true
	s.recordStep(ctx, stepSubscribe, "success")
	s.logger.Info("Profile subscribed to list", map[string]interface{}{
		"profileId": result.ProfileID,
		"listId":    s.config.ListID,
		"sms":       contact.Phone != "",
	})
}

func (s *Service) notify(ctx context.Context, contact *Contact, result *Result) {
	switch {
	case contact.Phone == "":
		result.SMSStatus = NotificationSkippedNoPhone
	case s.notifier == nil || !s.notifier.Configured():
		result.SMSStatus = NotificationSkippedNotConfigured
	}
	if result.SMSStatus != "" {
		s.recordStep(ctx, stepNotify, string(result.SMSStatus))
		s.logger.Debug("Notification skipped", map[string]interface{}{
			"status": result.SMSStatus,
		})
		return
	}

	ctx, span := s.obs.StartSpan(ctx, "sms.send", attribute.String("sms.provider", s.notifier.Name()))
	defer span.End()

	if err := s.notifier.Send(ctx, contact.Phone, smsBody(s.config.SMS, contact)); err != nil {
		stdErr := errors.NewNotificationSendFailedError(s.notifier.Name(), err)
		result.SMSStatus = NotificationFailed
		result.SMSError = err.Error()
		s.recordStep(ctx, stepNotify, string(NotificationFailed))
		span.RecordError(err)
		span.SetStatus(codes.Error, "sms failed")
		s.logger.Warn("Notification failed", map[string]interface{}{
			"provider": s.notifier.Name(),
			"phone":    maskPhone(contact.Phone),
			"error":    stdErr,
		})
		return
	}

	result.SMSStatus = NotificationSent
	s.recordStep(ctx, stepNotify, string(NotificationSent))
	s.logger.Info("Notification sent", map[string]interface{}{
		"provider": s.notifier.Name(),
		"phone":    maskPhone(contact.Phone),
	})
}

func (s *Service) recordStep(ctx context.Context, step, result string) {
	metrics.NominationSteps.WithLabelValues(step, result).Inc()
	s.obs.RecordStep(ctx, step, result)
}

// TestConnection checks the Klaviyo key against the lists endpoint.
func (s *Service) TestConnection(ctx context.Context) error {
	if len(s.config.MissingSettings) > 0 || s.klaviyo == nil {
		return fmt.Errorf("klaviyo not configured: %s", strings.Join(s.config.MissingSettings, ", "))
	}
	if err := s.klaviyo.TestConnection(ctx); err != nil {
		return fmt.Errorf("klaviyo connection failed: %w", err)
	}
	return nil
}
