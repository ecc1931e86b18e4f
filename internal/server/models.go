package server

import "time"

// HTTPError is the error body produced by the unified error handler.
type HTTPError struct {
	Error string `json:"error"`
}

type AuthSignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

type IDResponse struct {
	ID string `json:"id"`
}

// RunAgentRequest is the body for POST /api/agents/:type/run.
type RunAgentRequest struct {
	Platform      string `json:"platform"`
	EnableActions bool   `json:"enable_actions"`
	Limit         int    `json:"limit"`
}

// AuthRequiredResponse is returned with 401 when a CRM platform needs a
// reconnect before the agent can run.
type AuthRequiredResponse struct {
	Error        string `json:"error"`
	RequiresAuth bool   `json:"requires_auth"`
	Platform     string `json:"platform"`
}

// AgentConfigRequest upserts the per-user agent settings.
type AgentConfigRequest struct {
	AgentType     string `json:"agent_type"`
	Enabled       bool   `json:"enabled"`
	EnableActions bool   `json:"enable_actions"`
	ScheduleCron  string `json:"schedule_cron,omitempty"`
}

// ConnectPlatformRequest stores OAuth tokens obtained by the UI flow.
type ConnectPlatformRequest struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	InstanceURL  string `json:"instance_url,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
}

// IntegrationStatusResponse reports the stored token state for a platform.
type IntegrationStatusResponse struct {
	Platform   string     `json:"platform"`
	Connected  bool       `json:"connected"`
	TokenState string     `json:"token_state,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

type CreateContactRequest struct {
	FirstName  string   `json:"first_name"`
	LastName   string   `json:"last_name"`
	Email      string   `json:"email,omitempty"`
	Phone      string   `json:"phone,omitempty"`
	Title      string   `json:"title,omitempty"`
	Department string   `json:"department,omitempty"`
	CompanyID  string   `json:"company_id,omitempty"`
	LeadScore  int      `json:"lead_score,omitempty"`
	Status     string   `json:"status,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

type CreateOpportunityRequest struct {
	Name              string     `json:"name"`
	ContactID         string     `json:"contact_id,omitempty"`
	CompanyID         string     `json:"company_id,omitempty"`
	Amount            float64    `json:"amount,omitempty"`
	Stage             string     `json:"stage,omitempty"`
	Probability       int        `json:"probability,omitempty"`
	Priority          string     `json:"priority,omitempty"`
	ExpectedCloseDate *time.Time `json:"expected_close_date,omitempty"`
}

type CreateActivityRequest struct {
	ContactID     string     `json:"contact_id,omitempty"`
	OpportunityID string     `json:"opportunity_id,omitempty"`
	Type          string     `json:"type"`
	Subject       string     `json:"subject"`
	ScheduledAt   *time.Time `json:"scheduled_at,omitempty"`
}

// SeedResponse reports what the test-data generator created.
type SeedResponse struct {
	Companies     int `json:"companies"`
	Contacts      int `json:"contacts"`
	Opportunities int `json:"opportunities"`
	Activities    int `json:"activities"`
}
