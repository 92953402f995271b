package dto

import (
	"time"

	"github.com/dhazehtx/pup-connect-finds-sub002/internal/models"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// SuccessResponse represents a standard success response
type SuccessResponse struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// RefundListResponse represents refund requests on a transaction grouped by status
type RefundListResponse struct {
	Items     []models.RefundRequest `json:"items"`
	Pending   int                    `json:"pending"`
	Processed int                    `json:"processed"`
	Other     int                    `json:"other"`
}

// HealthResponse represents the health check result
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}
