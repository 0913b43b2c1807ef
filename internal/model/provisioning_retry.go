package model

import "time"

// ProvisioningRetry is a deferred request to materialize an OAuth account
// whose first insert failed while sign-in was allowed to proceed.
type ProvisioningRetry struct {
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	Provider    string    `json:"provider"`
	Attempts    int       `json:"attempts"`
	FirstFailed time.Time `json:"first_failed"`
	LastError   string    `json:"last_error,omitempty"`
}

// User returns the row the retry should insert.
func (r ProvisioningRetry) User() *User {
	return &User{
		Email:    r.Email,
		Name:     r.Name,
		Provider: r.Provider,
	}
}
