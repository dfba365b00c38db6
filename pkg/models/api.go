// pkg/models/api.go
package models

// Validation error response, Laravel style
type ValidationErrorResponse struct {
	Message string              `json:"message" example:"Validation failed"`
	Errors  map[string][]string `json:"errors"`
}

// Generic error response (403/404/409/500)
type ErrorResponse struct {
	Error   bool   `json:"error" example:"true"`
	Message string `json:"message" example:"Forbidden"`
	Code    string `json:"code,omitempty" example:"FORBIDDEN"`
}

// QuotaLimits is the per-day allowance shown when a quota blocks an action.
type QuotaLimits struct {
	Queries int    `json:"queries"`
	Uploads int    `json:"uploads"`
	Label   string `json:"label"`
}

// QuotaErrorResponse is returned with 429 when a daily assistant quota is exhausted.
type QuotaErrorResponse struct {
	Error   bool        `json:"error" example:"true"`
	Code    string      `json:"code" example:"QUOTA_EXCEEDED"`
	Kind    string      `json:"kind" example:"query"`
	Message string      `json:"message"`
	Limits  QuotaLimits `json:"limits"`
	Usage   DailyUsage  `json:"usage"`
	Upgrade bool        `json:"upgrade"`
}
