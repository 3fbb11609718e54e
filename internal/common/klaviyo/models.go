package klaviyo

// Profile is built with NewProfile and the With* methods and only turned
// into a JSON:API document when it is sent.
type Profile struct {
	Email       string
	FirstName   string
	LastName    string
	PhoneNumber string
	Properties  map[string]interface{}
}

func NewProfile(email string) *Profile {
	return &Profile{
		Email:      email,
		Properties: map[string]interface{}{},
	}
}

func (p *Profile) WithName(first, last string) *Profile {
	p.FirstName = first
	p.LastName = last
	return p
}

// WithPhone sets the E.164 phone number. An empty phone leaves it unset.
func (p *Profile) WithPhone(phone string) *Profile {
	p.PhoneNumber = phone
	return p
}

func (p *Profile) WithProperty(key string, value interface{}) *Profile {
	p.Properties[key] = value
	return p
}

// OutcomeKind tells apart a freshly created profile from a duplicate.
type OutcomeKind string

const (
	OutcomeCreated       OutcomeKind = "created"
	OutcomeAlreadyExists OutcomeKind = "already_exists"
)

// UpsertOutcome is the resolved result of a profile create call.
type UpsertOutcome struct {
	Kind      OutcomeKind
	ProfileID string
}

func Created(id string) UpsertOutcome {
	return UpsertOutcome{Kind: OutcomeCreated, ProfileID: id}
}

func AlreadyExists(id string) UpsertOutcome {
	return UpsertOutcome{Kind: OutcomeAlreadyExists, ProfileID: id}
}

// Subscription asks for marketing consent on one list. SMS consent is only
// requested when PhoneNumber is set.
type Subscription struct {
	ListID       string
	CustomSource string
	ProfileID    string
	Email        string
	PhoneNumber  string
}

type List struct {
	ID   string
	Name string
}

// --- wire format ---

type document struct {
	Data interface{} `json:"data"`
}

type profileAttributes struct {
	Email       string                 `json:"email,omitempty"`
	FirstName   string                 `json:"first_name,omitempty"`
	LastName    string                 `json:"last_name,omitempty"`
	PhoneNumber string                 `json:"phone_number,omitempty"`
	Properties  map[string]interface{} `json:"properties,omitempty"`
}

type profileResource struct {
	Type       string            `json:"type"`
	ID         string            `json:"id,omitempty"`
	Attributes profileAttributes `json:"attributes"`
}

func (p *Profile) createResource() profileResource {
	return profileResource{
		Type: "profile",
		Attributes: profileAttributes{
			Email:       p.Email,
			FirstName:   p.FirstName,
			LastName:    p.LastName,
			PhoneNumber: p.PhoneNumber,
			Properties:  p.Properties,
		},
	}
}

// updateResource omits the email, which identifies the profile and is never changed.
func (p *Profile) updateResource(id string) profileResource {
	r := p.createResource()
	r.ID = id
	r.Attributes.Email = ""
	return r
}

type createProfileResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

type apiErrorResponse struct {
	Errors []struct {
		Code   string `json:"code"`
		Title  string `json:"title"`
		Detail string `json:"detail"`
		Meta   struct {
			DuplicateProfileID string `json:"duplicate_profile_id"`
		} `json:"meta"`
	} `json:"errors"`
}

type consent struct {
	Marketing struct {
		Consent string `json:"consent"`
	} `json:"marketing"`
}

func subscribed() *consent {
	c := &consent{}
	c.Marketing.Consent = "SUBSCRIBED"
	return c
}

type subscriptionChannels struct {
	Email *consent `json:"email"`
	SMS   *consent `json:"sms,omitempty"`
}

type subscriptionProfile struct {
	Type       string `json:"type"`
	ID         string `json:"id,omitempty"`
	Attributes struct {
		Email         string               `json:"email"`
		PhoneNumber   string               `json:"phone_number,omitempty"`
		Subscriptions subscriptionChannels `json:"subscriptions"`
	} `json:"attributes"`
}

type relationship struct {
	Data struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	} `json:"data"`
}

type subscriptionJob struct {
	Type       string `json:"type"`
	Attributes struct {
		CustomSource string `json:"custom_source,omitempty"`
		Profiles     struct {
			Data []subscriptionProfile `json:"data"`
		} `json:"profiles"`
	} `json:"attributes"`
	Relationships struct {
		List relationship `json:"list"`
	} `json:"relationships"`
}

func (s Subscription) job() subscriptionJob {
	profile := subscriptionProfile{Type: "profile", ID: s.ProfileID}
	profile.Attributes.Email = s.Email
	profile.Attributes.PhoneNumber = s.PhoneNumber
	profile.Attributes.Subscriptions.Email = subscribed()
	if s.PhoneNumber != "" {
		profile.Attributes.Subscriptions.SMS = subscribed()
	}

	job := subscriptionJob{Type: "profile-subscription-bulk-create-job"}
	job.Attributes.CustomSource = s.CustomSource
	job.Attributes.Profiles.Data = []subscriptionProfile{profile}
	job.Relationships.List.Data.Type = "list"
	job.Relationships.List.Data.ID = s.ListID
	return job
}

type listsResponse struct {
	Data []struct {
		ID         string `json:"id"`
		Attributes struct {
			Name string `json:"name"`
		} `json:"attributes"`
	} `json:"data"`
}
