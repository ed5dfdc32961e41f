package types

// ScanRequest is what a gate device or kiosk posts for an explicit-action scan.
type ScanRequest struct {
	CredentialID string `json:"credential_id"`
	GateID       string `json:"gate_id"`
	Action       string `json:"action"`
	Actor        string `json:"actor,omitempty"`
	RequestedAt  string `json:"requested_at,omitempty"` // optional device timestamp
}

// GateScanRequest is posted by a gate machine that only knows which credential
// it read. The gate's configuration decides the action.
type GateScanRequest struct {
	CredentialID string `json:"credential_id"`
	Actor        string `json:"actor,omitempty"`
}

type VisitorSnapshot struct {
	Name        string `json:"name"`
	Phone       string `json:"phone,omitempty"`
	Purpose     string `json:"purpose,omitempty"`
	VisitStart  string `json:"visit_start"`
	VisitEnd    string `json:"visit_end"`
	Lifecycle   string `json:"lifecycle"`
	TotalDays   int    `json:"total_days"`
	DaysLeft    int    `json:"days_left"`
	DaysToStart int    `json:"days_to_start,omitempty"`
	DaysExpired int    `json:"days_expired,omitempty"`
}

type ScanResponse struct {
	OK           bool             `json:"ok"`
	Outcome      string           `json:"outcome"` // accepted | rejected | reported
	Granted      bool             `json:"granted"`
	Action       string           `json:"action"`
	Status       string           `json:"status"`
	Reason       string           `json:"reason,omitempty"`
	CredentialID string           `json:"credential_id"`
	GateID       string           `json:"gate_id"`
	EntryID      string           `json:"entry_id,omitempty"`
	Visitor      *VisitorSnapshot `json:"visitor,omitempty"`
	ServerTime   string           `json:"server_time"`
}

type StatusResponse struct {
	CredentialID string           `json:"credential_id"`
	Status       string           `json:"status"`
	Visitor      *VisitorSnapshot `json:"visitor,omitempty"`
	ServerTime   string           `json:"server_time"`
}

type HistoryEntry struct {
	ID           string `json:"id"`
	GateID       string `json:"gate_id"`
	BuildingGate string `json:"building_gate,omitempty"`
	Action       string `json:"action"`
	ScannedAt    string `json:"scanned_at"`
	Actor        string `json:"actor,omitempty"`
}

type HistoryResponse struct {
	CredentialID string         `json:"credential_id"`
	Entries      []HistoryEntry `json:"entries"`
}
