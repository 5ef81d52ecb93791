package handlers

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/JulianoCristian/iotedge/internal/api/middleware"
	"github.com/JulianoCristian/iotedge/internal/models"
	"github.com/JulianoCristian/iotedge/internal/peercred"
	"github.com/JulianoCristian/iotedge/internal/workload"
	"github.com/JulianoCristian/iotedge/pkg/certutil"
)

// AuditRecorder stores audit log entries
type AuditRecorder interface {
	Create(log *models.AuditLog) error
}

// ServerCertHandler handles workload server certificate requests
type ServerCertHandler struct {
	issuer *workload.Issuer
	audit  AuditRecorder
}

// NewServerCertHandler creates a new server certificate handler. audit may
// be nil to disable auditing.
func NewServerCertHandler(issuer *workload.Issuer, audit AuditRecorder) *ServerCertHandler {
	return &ServerCertHandler{
		issuer: issuer,
		audit:  audit,
	}
}

// IssueServerCertificate issues a server certificate for a module
// POST /modules/:name/genid/:genid/certificate/server
func (h *ServerCertHandler) IssueServerCertificate(c *gin.Context) {
	moduleID := strings.TrimSpace(c.Param("name"))
	generationID := strings.TrimSpace(c.Param("genid"))

	resp, err := h.issuer.IssueServerCertificate(c.Request.Context(), moduleID, generationID, c.Request.Body)
	statusCode, body := workload.MapResult(resp, err)

	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"module_id":     moduleID,
			"generation_id": generationID,
			"status":        statusCode,
		}).Warn("server certificate request failed")
	}

	h.record(c, moduleID, generationID, statusCode, resp, err)

	RespondJSON(c, statusCode, body)
}

func (h *ServerCertHandler) record(c *gin.Context, moduleID, generationID string, statusCode int, resp *workload.CertificateResponse, reqErr error) {
	if h.audit == nil {
		return
	}

	entry := &models.AuditLog{
		Action:       models.ActionServerCertIssue,
		ModuleID:     moduleID,
		GenerationID: generationID,
		RequestID:    middleware.GetRequestID(c),
		UserAgent:    c.Request.UserAgent(),
		StatusCode:   statusCode,
		Success:      reqErr == nil,
	}
	if moduleID != "" && generationID != "" {
		entry.Alias = workload.Alias(moduleID, generationID, models.CertificateTypeServer)
	}
	if pid, ok := peercred.FromContext(c.Request.Context()); ok {
		entry.PID = strconv.Itoa(int(pid))
	}
	if reqErr != nil {
		entry.ErrorMsg = reqErr.Error()
	} else {
		entry.Details = certificateDetails(resp)
	}

	if err := h.audit.Create(entry); err != nil {
		log.WithError(err).Error("failed to write audit log")
	}
}

func certificateDetails(resp *workload.CertificateResponse) string {
	details := map[string]string{
		"expiration":       resp.Expiration,
		"private_key_type": resp.PrivateKey.Type,
	}
	if cert, err := certutil.ParseCertificate([]byte(resp.Certificate)); err == nil {
		details["fingerprint"] = certutil.Fingerprint(cert)
		details["serial"] = cert.SerialNumber.String()
	}

	b, err := json.Marshal(details)
	if err != nil {
		return ""
	}
	return string(b)
}
