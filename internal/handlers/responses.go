package handlers

// ErrorResponse is the standard error payload
type ErrorResponse struct {
	Error string `json:"error"`
}

// SuccessResponse is the standard success payload
type SuccessResponse struct {
	Message string `json:"message"`
}
