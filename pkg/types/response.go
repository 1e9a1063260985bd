package types

// StatusOK is the acknowledgement body for webhooks.
type StatusOK struct {
	Status string `json:"status"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope keeps the flat success/message pair mobile clients read and
// adds the typed error for newer callers.
type ErrorEnvelope struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Error   APIError `json:"error"`
}
