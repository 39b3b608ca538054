package model

// ErrorResponse is the standard envelope for management REST error responses.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the structured error information returned by the
// management API.
type ErrorDetail struct {
	Code    int                    `json:"code"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// KeyResponse is the management API representation of an API key. The secret
// appears only in the Key field, which is populated exactly once: on create
// and on rotate. Every other read returns the masked form.
type KeyResponse struct {
	APIKey
	Key          string `json:"key,omitempty"` // full "{prefix}.{secret}", one-time reveal
	MaskedSecret string `json:"masked_secret"`
}
