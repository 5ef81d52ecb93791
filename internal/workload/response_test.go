package workload

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/JulianoCristian/iotedge/internal/models"
)

func TestMapToResponseUnknownKeyType(t *testing.T) {
	c := okCertificate(models.PrivateKey{Type: "tpm"})
	_, err := MapToResponse(c)

	var wlErr *Error
	if !errors.As(err, &wlErr) || wlErr.Kind != KindIoError {
		t.Errorf("got %v, wanted an IO error", err)
	}
}

func TestCertificateResponseJSON(t *testing.T) {
	resp, err := MapToResponse(okCertificate(models.KeyRef("Betelgeuse")))
	if err != nil {
		t.Fatal(err)
	}
	b, err := json.Marshal(resp)
	if err != nil {
		t.Fatal(err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatal(err)
	}
	key, ok := decoded["privateKey"].(map[string]interface{})
	if !ok {
		t.Fatalf("privateKey missing in %s", b)
	}
	if key["type"] != "ref" || key["ref"] != "Betelgeuse" {
		t.Errorf("got privateKey %v", key)
	}
	if _, ok := key["bytes"]; ok {
		t.Errorf("bytes must be omitted for a reference: %s", b)
	}
	if _, ok := decoded["certificate"].(string); !ok {
		t.Errorf("certificate missing in %s", b)
	}
}
