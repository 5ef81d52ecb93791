package models

import "time"

// AuditLog represents an audit log entry
type AuditLog struct {
	ID           int64     `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Action       string    `json:"action"`
	ModuleID     string    `json:"module_id,omitempty"`
	GenerationID string    `json:"generation_id,omitempty"`
	Alias        string    `json:"alias,omitempty"`
	RequestID    string    `json:"request_id,omitempty"`
	UserAgent    string    `json:"user_agent,omitempty"`
	PID          string    `json:"pid,omitempty"`
	StatusCode   int       `json:"status_code"`
	Success      bool      `json:"success"`
	ErrorMsg     string    `json:"error_msg,omitempty"`
	Details      string    `json:"details,omitempty"` // JSON
}

// Audit action constants
const (
	ActionServerCertIssue = "server_cert_issue"
	ActionAdminCertIssue  = "admin_cert_issue"
)
