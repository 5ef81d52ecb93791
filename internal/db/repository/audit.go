package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/JulianoCristian/iotedge/internal/models"
)

// AuditRepository handles audit log data access
type AuditRepository struct {
	db *sql.DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create creates a new audit log entry. A zero Timestamp is set to now.
func (r *AuditRepository) Create(log *models.AuditLog) error {
	query := `
		INSERT INTO audit_logs (timestamp, action, module_id, generation_id, alias, request_id,
			user_agent, pid, status_code, success, error_msg, details)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	if log.Timestamp.IsZero() {
		log.Timestamp = time.Now().UTC()
	}

	success := 0
	if log.Success {
		success = 1
	}

	result, err := r.db.Exec(query,
		log.Timestamp.UTC(),
		log.Action,
		nullString(log.ModuleID),
		nullString(log.GenerationID),
		nullString(log.Alias),
		nullString(log.RequestID),
		nullString(log.UserAgent),
		nullString(log.PID),
		log.StatusCode,
		success,
		nullString(log.ErrorMsg),
		nullString(log.Details),
	)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	log.ID = id

	return nil
}

// List lists audit logs, newest first, with optional filters
func (r *AuditRepository) List(moduleID string, action string, limit int) ([]*models.AuditLog, error) {
	query := `
		SELECT id, timestamp, action, module_id, generation_id, alias, request_id,
			user_agent, pid, status_code, success, error_msg, details
		FROM audit_logs
		WHERE 1=1
	`
	args := []interface{}{}

	if moduleID != "" {
		query += " AND module_id = ?"
		args = append(args, moduleID)
	}

	if action != "" {
		query += " AND action = ?"
		args = append(args, action)
	}

	query += " ORDER BY timestamp DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.AuditLog

	for rows.Next() {
		log := &models.AuditLog{}
		var success int
		var moduleID, generationID, alias, requestID, userAgent, pid, errorMsg, details sql.NullString

		err := rows.Scan(
			&log.ID,
			&log.Timestamp,
			&log.Action,
			&moduleID,
			&generationID,
			&alias,
			&requestID,
			&userAgent,
			&pid,
			&log.StatusCode,
			&success,
			&errorMsg,
			&details,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}

		log.Success = success == 1
		log.ModuleID = moduleID.String
		log.GenerationID = generationID.String
		log.Alias = alias.String
		log.RequestID = requestID.String
		log.UserAgent = userAgent.String
		log.PID = pid.String
		log.ErrorMsg = errorMsg.String
		log.Details = details.String

		logs = append(logs, log)
	}

	return logs, rows.Err()
}

// DeleteOld deletes audit logs older than the given date
func (r *AuditRepository) DeleteOld(before time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM audit_logs WHERE timestamp < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old audit logs: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return count, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
