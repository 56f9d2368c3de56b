package models

// Decision is the outcome of a rate-limit check for one identity.
type Decision struct {
	Allowed    bool   `json:"allowed"`
	Reason     string `json:"reason,omitempty"`
	Horizon    string `json:"horizon,omitempty"`
	Remaining  int    `json:"remaining"`
	RetryAfter int    `json:"retry_after"`
}

// WindowStatus shows usage against one rate-limit horizon.
type WindowStatus struct {
	Horizon   string `json:"horizon"`
	Limit     int    `json:"limit"`
	Used      int    `json:"used"`
	Remaining int    `json:"remaining"`
}
