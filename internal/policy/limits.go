package policy

import (
	"time"

	"github.com/JulianoCristian/iotedge/internal/models"
)

// Limits holds the maximum validity allowed per certificate type
type Limits struct {
	MaxServerValidity time.Duration
}

// MaxDuration returns the maximum validity in seconds for the given certificate type
func (l Limits) MaxDuration(certType models.CertificateType) int64 {
	switch certType {
	case models.CertificateTypeServer:
		return int64(l.MaxServerValidity / time.Second)
	default:
		return 0
	}
}
