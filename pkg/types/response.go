package types

// RequestIDHeader carries the request id on requests and responses. Error
// bodies echo it so support can find the matching log line.
const RequestIDHeader = "X-Request-Id"

type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the public error body. Title and UserMessage are the
// localized strings shown to the student.
type APIError struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Title       string `json:"title,omitempty"`
	UserMessage string `json:"user_message,omitempty"`
	Retryable   bool   `json:"retryable,omitempty"`
	RequestID   string `json:"request_id,omitempty"`
	Details     any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
