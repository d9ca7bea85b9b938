package dto

// APIError is the uniform error envelope returned by every endpoint.
type APIError struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// NewAPIError creates an error response.
func NewAPIError(message string) APIError {
	return APIError{Error: message}
}

// WithDetails attaches detail text to an error response.
func (e APIError) WithDetails(details string) APIError {
	e.Details = details
	return e
}
