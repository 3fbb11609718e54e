package nominationsubmit

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"nomination-relay/internal/common/config"
	"nomination-relay/internal/common/errors"
	"nomination-relay/internal/common/klaviyo"
	"nomination-relay/internal/common/logger"
	"nomination-relay/internal/common/metrics"
	"nomination-relay/internal/common/middleware"
	"nomination-relay/internal/common/observability"
)

const (
	HandlerName = "nomination.submit"

	// maxBodyBytes bounds the form document; anything longer fails to parse.
	maxBodyBytes = 64 << 10
)

type Handler struct {
	config  *Config
	logger  logger.Logger
	service *Service
	obs     *observability.Observability
}

type HandlerOptions struct {
	AppConfig     *config.Config
	CustomConfig  *Config
	Logger        logger.Logger
	Klaviyo       KlaviyoAPI
	Notifier      Notifier
	Observability *observability.Observability
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	handlerConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)

	if err := handlerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for nomination-submit: %w", err)
	}

	var loggerInstance logger.Logger
	if opts.Logger != nil {
		loggerInstance = opts.Logger
	} else {
		loggerInstance = logger.NewStructured("info", "json")
	}
	loggerInstance = loggerInstance.With(map[string]interface{}{"handler": HandlerName})

	klaviyoAPI := opts.Klaviyo
	if klaviyoAPI == nil && opts.AppConfig != nil && len(handlerConfig.MissingSettings) == 0 {
		klaviyoAPI = klaviyo.NewClient(opts.AppConfig.Integrations.Klaviyo)
	}

	handler := &Handler{
		config: handlerConfig,
		logger: loggerInstance,
		obs:    opts.Observability,
	}
	handler.service = NewService(ServiceDependencies{
		Logger:        loggerInstance,
		Klaviyo:       klaviyoAPI,
		Notifier:      opts.Notifier,
		Observability: opts.Observability,
	}, handlerConfig)

	if len(handlerConfig.MissingSettings) > 0 {
		loggerInstance.Warn("Klaviyo settings missing, submissions will be rejected", map[string]interface{}{
			"missing": handlerConfig.MissingSettings,
		})
	}
	if opts.Notifier == nil || !opts.Notifier.Configured() {
		loggerInstance.Info("SMS provider not configured, notifications will be skipped", nil)
	}

	return handler, nil
}

// Register mounts the submit route on router. Preflight requests are answered
// by middleware.CORS before routing.
func (h *Handler) Register(router gin.IRoutes) {
	router.POST(h.config.Path, h.Handle)
}

func (h *Handler) Handle(c *gin.Context) {
	startTime := time.Now()
	requestID := middleware.GetRequestID(c)
	log := h.logger.With(map[string]interface{}{"requestId": requestID})

	ctx, span := h.obs.StartSpan(c.Request.Context(), HandlerName, attribute.String("request.id", requestID))
	defer span.End()

	outcome := "success"
	defer func() {
		duration := time.Since(startTime)
		metrics.NominationRequests.WithLabelValues(outcome).Inc()
		metrics.NominationDuration.Observe(duration.Seconds())
		h.obs.RecordNomination(ctx, outcome, duration)
	}()

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		outcome = string(errors.ErrCodeInvalidBody)
		h.writeError(c, log, errors.NewInvalidBodyError(err), requestID)
		return
	}

	contact, stdErr := parseSubmission(body, h.config)
	if stdErr != nil {
		outcome = string(stdErr.Code)
		h.writeError(c, log, stdErr, requestID)
		return
	}

	log.Info("Processing nomination", map[string]interface{}{
		"email":     contact.Email,
		"hasPhone":  contact.Phone != "",
		"phone":     maskPhone(contact.Phone),
		"causeName": contact.CauseName,
	})

	result, err := h.Execute(ctx, contact)
	if err != nil {
		stdErr := errors.Normalize(err)
		outcome = string(stdErr.Code)
		h.writeError(c, log, stdErr, requestID)
		return
	}

	c.JSON(http.StatusOK, newResponse(result, requestID, h.config.SuccessMessage))
	log.Info("Nomination relayed", map[string]interface{}{
		"profileId":  result.ProfileID,
		"outcome":    result.ProfileOutcome,
		"subscribed": result.Subscribed,
		"smsStatus":  result.SMSStatus,
		"durationMs": time.Since(startTime).Milliseconds(),
	})
}

// Execute runs the relay for an already validated contact.
func (h *Handler) Execute(ctx context.Context, contact *Contact) (*Result, error) {
	return h.service.Execute(ctx, contact)
}

func (h *Handler) writeError(c *gin.Context, log logger.Logger, stdErr *errors.StandardError, requestID string) {
	fields := map[string]interface{}{
		"errorCode": stdErr.Code,
		"category":  errors.GetErrorCategory(stdErr.Code),
	}
	status := stdErr.HTTPStatus()
	if status >= http.StatusInternalServerError {
		log.WithError(stdErr).Error("Nomination failed", fields)
	} else {
		log.WithError(stdErr).Warn("Nomination rejected", fields)
	}

	resp := ErrorResponse{
		Error:     stdErr.Message,
		Details:   stdErr.Details,
		Code:      string(stdErr.Code),
		RequestID: requestID,
	}
	if stdErr.Code == errors.ErrCodeInternal {
		resp.Details = ""
	}
	c.AbortWithStatusJSON(status, resp)
}

func newResponse(result *Result, requestID, message string) *Response {
	resp := &Response{
		Success:           true,
		RequestID:         requestID,
		ProfileID:         result.ProfileID,
		ProfileOutcome:    string(result.ProfileOutcome),
		ProfileUpdated:    result.ProfileUpdated,
		KlaviyoSubscribed: result.Subscribed,
		PhoneIncluded:     result.PhoneIncluded,
		SMSStatus:         result.SMSStatus,
		QuoSMSSent:        result.SMSStatus == NotificationSent,
		Message:           message,
	}

	var klaviyoErrors []string
	if result.ProfileUpdateError != "" {
		klaviyoErrors = append(klaviyoErrors, "profile update: "+result.ProfileUpdateError)
	}
	if result.SubscriptionError != "" {
		klaviyoErrors = append(klaviyoErrors, result.SubscriptionError)
	}
	if len(klaviyoErrors) > 0 {
		joined := strings.Join(klaviyoErrors, "; ")
		resp.Debug.KlaviyoError = &joined
	}
	if result.SMSError != "" {
		smsErr := result.SMSError
		resp.Debug.QuoError = &smsErr
	}
	return resp
}

// HealthCheck verifies the Klaviyo credentials.
func (h *Handler) HealthCheck(ctx context.Context) error {
	if err := h.service.TestConnection(ctx); err != nil {
		return fmt.Errorf("nomination relay health check failed: %w", err)
	}
	return nil
}
