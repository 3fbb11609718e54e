package nominationsubmit

import (
	"nomination-relay/internal/common/klaviyo"
	"nomination-relay/internal/common/logger"
	"nomination-relay/internal/common/observability"
)

// Submission is the form document as posted by the browser.
type Submission struct {
	Email         string `json:"email"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	Phone         string `json:"phone"`
	CauseName     string `json:"causeName"`
	CauseLocation string `json:"causeLocation"`
	CauseWhy      string `json:"causeWhy"`
}

// Contact is a validated submission. Phone is E.164 or empty.
type Contact struct {
	Email         string
	FirstName     string
	LastName      string
	Phone         string
	CauseName     string
	CauseLocation string
	CauseWhy      string

	// CauseNameDefaulted is set when CauseName holds the default rather than user input.
	CauseNameDefaulted bool
}

type NotificationStatus string

const (
	NotificationSent                 NotificationStatus = "sent"
	NotificationFailed               NotificationStatus = "failed"
	NotificationSkippedNoPhone       NotificationStatus = "skipped_no_phone"
	NotificationSkippedNotConfigured NotificationStatus = "skipped_not_configured"
)

// Result collects what happened at each step of one submission.
type Result struct {
	ProfileID          string
	ProfileOutcome     klaviyo.OutcomeKind
	ProfileUpdated     bool
	ProfileUpdateError string
	Subscribed         bool
	SubscriptionError  string
	PhoneIncluded      bool
	SMSStatus          NotificationStatus
	SMSError           string
}

type Response struct {
	Success           bool               `json:"success"`
	RequestID         string             `json:"request_id"`
	ProfileID         string             `json:"profile_id"`
	ProfileOutcome    string             `json:"profile_outcome"`
	ProfileUpdated    bool               `json:"profile_updated"`
	KlaviyoSubscribed bool               `json:"klaviyo_subscribed"`
	PhoneIncluded     bool               `json:"phone_included"`
	SMSStatus         NotificationStatus `json:"sms_status"`
	QuoSMSSent        bool               `json:"quo_sms_sent"`
	Message           string             `json:"message"`
	Debug             Debug              `json:"debug"`
}

// Debug carries non-fatal step errors. Absent errors serialize as null.
type Debug struct {
	KlaviyoError *string `json:"klaviyo_error"`
	QuoError     *string `json:"quo_error"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Details   string `json:"details,omitempty"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

type ServiceDependencies struct {
	Logger        logger.Logger
	Klaviyo       KlaviyoAPI
	Notifier      Notifier
	Observability *observability.Observability
}
