package model

// Plan is immutable reference data consulted by provisioning and billing.
type Plan struct {
	Slug           string  `json:"slug" db:"slug"`
	Name           string  `json:"name" db:"name"`
	Price          float64 `json:"price" db:"price"`
	DocumentsLimit int     `json:"documents_limit" db:"documents_limit"`
	StorageGB      int     `json:"storage_gb" db:"storage_gb"`
	UsersLimit     int     `json:"users_limit" db:"users_limit"`
	TrialDays      int     `json:"trial_days" db:"trial_days"`
}
