package api

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error string `json:"error"`
}
