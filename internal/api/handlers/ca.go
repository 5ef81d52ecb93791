package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/JulianoCristian/iotedge/internal/ca"
)

// CAHandler handles CA-related requests
type CAHandler struct {
	authority *ca.Authority
}

// NewCAHandler creates a new CA handler
func NewCAHandler(a *ca.Authority) *CAHandler {
	return &CAHandler{
		authority: a,
	}
}

// GetTrustBundle returns the CA certificate
// GET /trust-bundle
func (h *CAHandler) GetTrustBundle(c *gin.Context) {
	RespondData(c, http.StatusOK, "application/x-pem-file", h.authority.CertificatePEM())
}

// Health reports that the daemon is serving
// GET /health
func Health(c *gin.Context) {
	RespondJSON(c, http.StatusOK, gin.H{"status": "ok"})
}
