package workload

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/JulianoCristian/iotedge/internal/models"
)

// CertificateResponse is the success body of a certificate request
type CertificateResponse struct {
	PrivateKey  PrivateKeyResponse `json:"privateKey"`
	Certificate string             `json:"certificate"`
	Expiration  string             `json:"expiration"`
}

// PrivateKeyResponse carries either inline key bytes or a key reference
type PrivateKeyResponse struct {
	Type  string `json:"type"`
	Ref   string `json:"ref,omitempty"`
	Bytes string `json:"bytes,omitempty"`
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Message string `json:"message"`
}

// MapToResponse converts a certificate returned by a store into a response
// body. Failures reading the certificate are internal errors.
func MapToResponse(cert models.Certificate) (*CertificateResponse, error) {
	certPEM, err := cert.PEM()
	if err != nil {
		return nil, newError(KindIoError, "certificate", err)
	}

	key, err := cert.PrivateKey()
	if err != nil {
		return nil, newError(KindIoError, "private key", err)
	}

	validTo, err := cert.ValidTo()
	if err != nil {
		return nil, newError(KindIoError, "valid to", err)
	}

	resp := &CertificateResponse{
		Certificate: string(certPEM),
		Expiration:  validTo.UTC().Format(time.RFC3339),
	}

	switch key.Type {
	case models.PrivateKeyTypeKey:
		resp.PrivateKey = PrivateKeyResponse{Type: string(key.Type), Bytes: key.Bytes}
	case models.PrivateKeyTypeRef:
		resp.PrivateKey = PrivateKeyResponse{Type: string(key.Type), Ref: key.Ref}
	default:
		return nil, newError(KindIoError, "private key", fmt.Errorf("unsupported private key type %q", key.Type))
	}

	return resp, nil
}

// MapResult returns the status code and body for the outcome of a request
func MapResult(resp *CertificateResponse, err error) (int, interface{}) {
	if err == nil {
		return http.StatusCreated, resp
	}

	var wlErr *Error
	if errors.As(err, &wlErr) {
		return wlErr.HTTPStatus(), ErrorResponse{Message: wlErr.Error()}
	}
	return http.StatusInternalServerError, ErrorResponse{Message: err.Error()}
}
