package handlers

// ErrorResponse is the body echo writes for an HTTPError.
type ErrorResponse struct {
	Message string `json:"message"`
}
