package nominationsubmit

import (
	"encoding/json"
	"fmt"
	"strings"

	"nomination-relay/internal/common/errors"
	"nomination-relay/internal/common/validation"
)

const missingFieldsMessage = "Missing required fields (email, firstName, lastName)"

// GetInputSchema bounds only the required fields. Optional fields accept any
// string; an unusable phone is dropped during normalization.
func GetInputSchema() validation.JSONSchema {
	optional := []string{"string", "null"}
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"email", "firstName", "lastName"},
		Properties: map[string]validation.Property{
			"email": {
				Type:        "string",
				Description: "Email address of the nominator",
				MaxLength:   intPtr(254),
			},
			"firstName": {
				Type:        "string",
				Description: "First name of the nominator",
				MaxLength:   intPtr(100),
			},
			"lastName": {
				Type:        "string",
				Description: "Last name of the nominator",
				MaxLength:   intPtr(100),
			},
			"phone": {
				Type:        optional,
				Description: "Free-form phone number",
			},
			"causeName": {
				Type:        optional,
				Description: "Name of the nominated cause",
			},
			"causeLocation": {
				Type:        optional,
				Description: "Where the cause operates",
			},
			"causeWhy": {
				Type:        optional,
				Description: "Why the cause deserves support",
			},
		},
	}
}

func intPtr(i int) *int {
	return &i
}

// parseSubmission validates the raw body and returns the normalized contact.
func parseSubmission(body []byte, cfg *Config) (*Contact, *errors.StandardError) {
	result, err := validation.ValidateDocument(body, GetInputSchema())
	if err != nil {
		return nil, errors.NewInvalidBodyError(err)
	}
	if !result.Valid {
		if result.HasErrors(validation.RootField) {
			return nil, errors.NewInvalidBodyError(fmt.Errorf("body must be a JSON object"))
		}
		for _, e := range result.Errors {
			if e.Code == "REQUIRED_FIELD_MISSING" {
				return nil, errors.NewValidationError(missingFieldsMessage, strings.Join(result.GetErrorMessages(), "; "))
			}
		}
		return nil, errors.NewValidationError("Invalid fields", strings.Join(result.GetErrorMessages(), "; "))
	}

	var sub Submission
	if err := json.Unmarshal(body, &sub); err != nil {
		return nil, errors.NewInvalidBodyError(err)
	}

	return normalize(&sub, cfg)
}

func normalize(sub *Submission, cfg *Config) (*Contact, *errors.StandardError) {
	contact := &Contact{
		Email:         strings.ToLower(strings.TrimSpace(sub.Email)),
		FirstName:     strings.TrimSpace(sub.FirstName),
		LastName:      strings.TrimSpace(sub.LastName),
		CauseName:     strings.TrimSpace(sub.CauseName),
		CauseLocation: strings.TrimSpace(sub.CauseLocation),
		CauseWhy:      strings.TrimSpace(sub.CauseWhy),
	}

	var empty []string
	if contact.Email == "" {
		empty = append(empty, "email")
	}
	if contact.FirstName == "" {
		empty = append(empty, "firstName")
	}
	if contact.LastName == "" {
		empty = append(empty, "lastName")
	}
	if len(empty) > 0 {
		return nil, errors.NewValidationError(missingFieldsMessage, "empty: "+strings.Join(empty, ", "))
	}

	if !validation.ValidateEmail(contact.Email) {
		return nil, errors.NewInvalidEmailError(contact.Email)
	}

	if contact.CauseName == "" {
		contact.CauseName = cfg.DefaultCauseName
		contact.CauseNameDefaulted = true
	}
	if phone, ok := cfg.Phone.Normalize(sub.Phone); ok {
		contact.Phone = phone
	}
	return contact, nil
}
