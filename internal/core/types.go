package core

import "time"

// Action identifies a message router operation.
type Action string

const (
	ActionFetchNotes        Action = "fetchNotes"
	ActionFetchContent      Action = "fetchContent"
	ActionValidateAPIKey    Action = "validateApiKey"
	ActionSaveAPIKey        Action = "saveApiKey"
	ActionGetAPIKey         Action = "getApiKey"
	ActionTestAPIConnection Action = "testApiConnection"
	ActionCacheCheck        Action = "cacheCheck"
)

// Note is a normalized task update, immutable once constructed.
type Note struct {
	ID             string    `json:"id"`
	Author         string    `json:"author"`
	AuthorPhotoURL string    `json:"author_photo_url,omitempty"`
	Body           string    `json:"body"`
	CreatedAt      time.Time `json:"created_at"`
	Age            string    `json:"age"`
}

// TaskContent captures the non-note fields of a task row.
type TaskContent struct {
	ID      string            `json:"id"`
	Name    string            `json:"name"`
	Board   string            `json:"board,omitempty"`
	Group   string            `json:"group,omitempty"`
	Columns map[string]string `json:"columns,omitempty"`
}

// Account describes the credential owner reported by the upstream.
type Account struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Provenance captures how a router response was resolved.
type Provenance struct {
	FetchID        string     `json:"fetch_id"`
	RequestedAt    time.Time  `json:"requested_at"`
	ResolvedAt     time.Time  `json:"resolved_at"`
	FromCache      bool       `json:"from_cache"`
	CacheExpiresAt *time.Time `json:"cache_expires_at,omitempty"`
}

// BackoffState tracks upstream overload suspension.
type BackoffState struct {
	Active              bool       `json:"active"`
	ResumeAt            *time.Time `json:"resume_at,omitempty"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
}

// LicenseStatus is the persisted outcome of a license verification.
type LicenseStatus string

const (
	LicenseUnknown   LicenseStatus = ""
	LicenseActive    LicenseStatus = "active"
	LicenseCancelled LicenseStatus = "cancelled"
	LicenseInvalid   LicenseStatus = "invalid"
)

// License holds the persisted pro-tier entitlement.
type License struct {
	Key        string        `json:"key"`
	Status     LicenseStatus `json:"status"`
	Email      string        `json:"email,omitempty"`
	VerifiedAt time.Time     `json:"verified_at"`
}

// UsageDay is one calendar day of fetch counters, keyed ISO YYYY-MM-DD.
type UsageDay struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}
