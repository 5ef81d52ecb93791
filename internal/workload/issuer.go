package workload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/JulianoCristian/iotedge/internal/ca"
	"github.com/JulianoCristian/iotedge/internal/models"
	"github.com/JulianoCristian/iotedge/internal/policy"
)

// MaxRequestBodySize bounds the request body read by the pipeline
const MaxRequestBodySize = 64 << 10

// ServerCertificateRequest is the body of a server certificate request
type ServerCertificateRequest struct {
	CommonName string `json:"commonName"`
	Expiration string `json:"expiration"`
}

// serverCertificateBody tells a missing field apart from an empty one
type serverCertificateBody struct {
	CommonName *string `json:"commonName"`
	Expiration *string `json:"expiration"`
}

// decodeServerCertificateRequest requires both fields to be present. Empty
// values are left to the argument checks.
func decodeServerCertificateRequest(raw []byte) (*ServerCertificateRequest, error) {
	var body serverCertificateBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, err
	}
	if body.CommonName == nil {
		return nil, errors.New("missing field commonName")
	}
	if body.Expiration == nil {
		return nil, errors.New("missing field expiration")
	}
	return &ServerCertificateRequest{
		CommonName: *body.CommonName,
		Expiration: *body.Expiration,
	}, nil
}

// Issuer turns server certificate requests into certificates from a store.
// It holds no per-request state and is safe for concurrent use as long as
// the store is.
type Issuer struct {
	store  ca.Store
	limits policy.Limits
}

// NewIssuer creates a new issuer
func NewIssuer(store ca.Store, limits policy.Limits) *Issuer {
	return &Issuer{
		store:  store,
		limits: limits,
	}
}

// IssueServerCertificate runs a server certificate request through
// validation and the store. The body is not read when either identifier
// is missing.
func (i *Issuer) IssueServerCertificate(ctx context.Context, moduleID, generationID string, body io.Reader) (*CertificateResponse, error) {
	if strings.TrimSpace(moduleID) == "" || strings.TrimSpace(generationID) == "" {
		return nil, newError(KindBadParam, "", nil)
	}

	raw, err := io.ReadAll(io.LimitReader(body, MaxRequestBodySize+1))
	if err != nil {
		return nil, newError(KindIoError, "request body", err)
	}
	if len(raw) > MaxRequestBodySize {
		return nil, newError(KindBadBody, "", fmt.Errorf("request body exceeds %d bytes", MaxRequestBodySize))
	}

	req, err := decodeServerCertificateRequest(raw)
	if err != nil {
		return nil, newError(KindBadBody, "", err)
	}

	props, err := i.serverProperties(moduleID, generationID, req)
	if err != nil {
		return nil, err
	}

	cert, err := i.refresh(ctx, props)
	if err != nil {
		return nil, err
	}

	return MapToResponse(cert)
}

func (i *Issuer) serverProperties(moduleID, generationID string, req *ServerCertificateRequest) (*models.CertificateProperties, error) {
	maxDuration := i.limits.MaxDuration(models.CertificateTypeServer)

	expiration, err := policy.ComputeValidity(req.Expiration, maxDuration)
	if err != nil {
		if errors.Is(err, policy.ErrEmptyArgument) {
			return nil, newError(KindEmptyArgument, "expiration", nil)
		}
		return nil, newError(KindInvalidTimestamp, "", err)
	}

	validity, err := policy.EnsureRange(expiration, 0, maxDuration)
	if err != nil {
		var rangeErr *policy.RangeError
		if errors.As(err, &rangeErr) {
			return nil, outOfRange(rangeErr)
		}
		return nil, newError(KindOutOfRange, "", err)
	}

	commonName, err := policy.EnsureNotEmpty(req.CommonName)
	if err != nil {
		return nil, newError(KindEmptyArgument, "commonName", nil)
	}

	return &models.CertificateProperties{
		ValidityInSecs:  uint64(validity),
		CommonName:      strings.TrimSpace(commonName),
		CertificateType: models.CertificateTypeServer,
		Alias:           Alias(moduleID, generationID, models.CertificateTypeServer),
	}, nil
}

// refresh replaces whatever certificate the store holds under the alias
func (i *Issuer) refresh(ctx context.Context, props *models.CertificateProperties) (models.Certificate, error) {
	if err := i.store.DestroyCertificate(ctx, props.Alias); err != nil && !errors.Is(err, ca.ErrCertificateNotFound) {
		return nil, newError(KindStoreError, "destroy", err)
	}

	cert, err := i.store.CreateCertificate(ctx, props)
	if err != nil {
		return nil, newError(KindStoreError, "create", err)
	}

	return cert, nil
}
