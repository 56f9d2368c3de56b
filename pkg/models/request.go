package models

// QueryRequest is the gateway's /v1/query request body.
type QueryRequest struct {
	Identity  string `json:"identity"`
	SessionID string `json:"session_id,omitempty"`
	Query     string `json:"query"`
	Language  string `json:"language,omitempty"`
	Area      string `json:"area,omitempty"`
	Category  string `json:"category,omitempty"`
}

// QueryResponse is the gateway's /v1/query response body.
type QueryResponse struct {
	RequestID string `json:"request_id"`
	SessionID string `json:"session_id,omitempty"`
	Answer    string `json:"answer"`
	Category  string `json:"category"`
	Cached    bool   `json:"cached"`
}

// ErrorResponse is the gateway's error body.
type ErrorResponse struct {
	Error      string `json:"error"`
	RetryAfter int    `json:"retry_after,omitempty"`
}

// AnswerRequest is the body sent to the upstream answer service.
type AnswerRequest struct {
	Query    string `json:"query"`
	Language string `json:"language,omitempty"`
	Area     string `json:"area,omitempty"`
	Category string `json:"category,omitempty"`
}

// AnswerResponse is the body returned by the upstream answer service.
type AnswerResponse struct {
	Answer string `json:"answer"`
}
