// Package models - Status API response types.
//
// Response Design Principles:
// - Consistent error structure across all endpoints
// - Machine-readable error codes for programmatic handling
// - Submission records are returned exactly as journaled
package models

import (
	"time"
)

// Status values used by HealthResponse and ComponentHealth.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusDisabled  = "disabled"
)

// Error codes returned in ErrorResponse.Code.
const (
	ErrorCodeBadRequest         = "BAD_REQUEST"
	ErrorCodeInternalError      = "INTERNAL_ERROR"
	ErrorCodeNotFound           = "NOT_FOUND"
	ErrorCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

type ErrorResponse struct {
	Error     string    `json:"error"`          // Error type (always "error")
	Message   string    `json:"message"`        // Human-readable error description
	Code      string    `json:"code,omitempty"` // Machine-readable error code
	Timestamp time.Time `json:"timestamp"`
}

// PoolStatus is a point-in-time view of the permit pool.
type PoolStatus struct {
	Capacity  int    `json:"capacity"`
	Available int    `json:"available"`
	Granted   int    `json:"granted"`
	Window    string `json:"window"`
}

type ComponentHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type HealthResponse struct {
	Status     string                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	InstanceID string                     `json:"instance_id,omitempty"`
	Pool       *PoolStatus                `json:"pool,omitempty"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

type SubmissionsResponse struct {
	Submissions []*SubmissionRecord `json:"submissions"`
	Count       int                 `json:"count"`
}

type StatsResponse struct {
	Totals    map[string]int64 `json:"totals"`
	Timestamp time.Time        `json:"timestamp"`
}

func NewErrorResponse(message string, code string) *ErrorResponse {
	return &ErrorResponse{
		Error:     "error",
		Message:   message,
		Code:      code,
		Timestamp: time.Now(),
	}
}

func NewHealthResponse() *HealthResponse {
	return &HealthResponse{
		Status:     StatusHealthy,
		Timestamp:  time.Now(),
		Components: make(map[string]ComponentHealth),
	}
}

// AddComponent records a component's state. Any unhealthy component marks
// the whole response unhealthy.
func (h *HealthResponse) AddComponent(name, status, message string) {
	h.Components[name] = ComponentHealth{Status: status, Message: message}
	if status == StatusUnhealthy {
		h.Status = StatusUnhealthy
	}
}
