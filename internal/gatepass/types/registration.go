package types

// RegisterRequest is the visitor self-registration form.
type RegisterRequest struct {
	FirstName      string `json:"first_name"`
	MiddleName     string `json:"middle_name,omitempty"`
	LastName       string `json:"last_name,omitempty"`
	Phone          string `json:"phone,omitempty"`
	Purpose        string `json:"purpose,omitempty"`
	IDType         string `json:"id_type,omitempty"` // "national_id" | "passport"
	NationalID     string `json:"national_id,omitempty"`
	PassportNumber string `json:"passport_number,omitempty"`
	BirthDate      string `json:"birth_date,omitempty"` // YYYY-MM-DD
	VisitStart     string `json:"visit_start"`          // YYYY-MM-DD
	VisitEnd       string `json:"visit_end"`            // YYYY-MM-DD
	HasPhoto       bool   `json:"has_photo,omitempty"`
	TermsAccepted  *bool  `json:"terms_accepted,omitempty"`
}

type RegisterResponse struct {
	CredentialID string `json:"credential_id"`
	VisitStart   string `json:"visit_start"`
	VisitEnd     string `json:"visit_end"`
	TotalDays    int    `json:"total_days"`
	QRPayload    string `json:"qr_payload"`
}

type CredentialSummary struct {
	CredentialID string `json:"credential_id"`
	Name         string `json:"name"`
	Phone        string `json:"phone,omitempty"`
	Purpose      string `json:"purpose,omitempty"`
	VisitStart   string `json:"visit_start"`
	VisitEnd     string `json:"visit_end"`
	Lifecycle    string `json:"lifecycle"`
	CheckedOutAt string `json:"checked_out_at,omitempty"`
}

type ReportResponse struct {
	Total       int                 `json:"total"`
	Credentials []CredentialSummary `json:"credentials"`
}
