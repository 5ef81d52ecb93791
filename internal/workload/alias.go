package workload

import "github.com/JulianoCristian/iotedge/internal/models"

// Alias derives the store key for a module's certificate. Identifiers are
// used as given.
func Alias(moduleID, generationID string, certType models.CertificateType) string {
	return moduleID + generationID + certType.String()
}
