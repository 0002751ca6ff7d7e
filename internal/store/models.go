package store

// CallStats are raw aggregates over one trailing window; rate computation
// belongs to the metrics service.
type CallStats struct {
	Volume          int `json:"volume"`
	WithSelection   int `json:"with_selection"`
	TransferSuccess int `json:"transfer_success"`
	TransferTotal   int `json:"transfer_total"`
}

// TrendPoint is one day of call volume.
type TrendPoint struct {
	Day   string `json:"day"`
	Calls int    `json:"calls"`
}

// RecentCall is a call joined with its IVR selection, if any.
type RecentCall struct {
	CallControlID string `json:"call_control_id"`
	Department    string `json:"department,omitempty"`
	Digit         string `json:"digit,omitempty"`
	CreatedAt     string `json:"ts"`
}
