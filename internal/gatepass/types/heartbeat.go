package types

type HeartbeatRequest struct {
	GateID          string `json:"gate_id"`
	FirmwareVersion string `json:"firmware_version,omitempty"`
	UptimeSeconds   uint64 `json:"uptime_s,omitempty"`
	IP              string `json:"ip,omitempty"`
}

type HeartbeatResponse struct {
	OK         bool   `json:"ok"`
	Known      bool   `json:"known"`
	GateID     string `json:"gate_id"`
	ServerTime string `json:"server_time"`
}
