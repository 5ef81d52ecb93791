package ca

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"sync"

	"github.com/miekg/pkcs11"
	log "github.com/sirupsen/logrus"

	"github.com/JulianoCristian/iotedge/internal/models"
)

const findBatchSize = 16

// PKCS11Store issues certificates whose private keys are generated inside a
// PKCS#11 token and never leave it. The token objects are labelled with the
// certificate alias.
type PKCS11Store struct {
	authority *Authority

	mu      sync.Mutex
	ctx     *pkcs11.Ctx
	session pkcs11.SessionHandle
	closed  bool
}

// NewPKCS11Store opens a logged in session on the given slot
func NewPKCS11Store(a *Authority, modulePath, slot, pin string) (*PKCS11Store, error) {
	ctx := pkcs11.New(modulePath)
	if ctx == nil {
		return nil, fmt.Errorf("failed to load PKCS#11 module %s", modulePath)
	}

	slotID, err := strconv.ParseUint(slot, 10, 32)
	if err != nil {
		ctx.Destroy()
		return nil, fmt.Errorf("invalid slot %q: %w", slot, err)
	}

	if err := ctx.Initialize(); err != nil {
		ctx.Destroy()
		return nil, fmt.Errorf("failed to initialize PKCS#11 module: %w", err)
	}

	session, err := openSession(ctx, uint(slotID), pin)
	if err != nil {
		ctx.Finalize()
		ctx.Destroy()
		return nil, err
	}

	return &PKCS11Store{
		authority: a,
		ctx:       ctx,
		session:   session,
	}, nil
}

func openSession(ctx *pkcs11.Ctx, slotID uint, pin string) (pkcs11.SessionHandle, error) {
	slots, err := ctx.GetSlotList(true)
	if err != nil {
		return 0, fmt.Errorf("failed to list slots: %w", err)
	}

	found := false
	for _, s := range slots {
		if s == slotID {
			found = true
			break
		}
	}
	if !found {
		return 0, fmt.Errorf("slot %d not found", slotID)
	}

	session, err := ctx.OpenSession(slotID, pkcs11.CKF_SERIAL_SESSION|pkcs11.CKF_RW_SESSION)
	if err != nil {
		return 0, fmt.Errorf("failed to open session: %w", err)
	}

	if err := ctx.Login(session, pkcs11.CKU_USER, pin); err != nil {
		ctx.CloseSession(session)
		return 0, fmt.Errorf("failed to log in: %w", err)
	}

	return session, nil
}

// CreateCertificate implements Store
func (s *PKCS11Store) CreateCertificate(ctx context.Context, props *models.CertificateProperties) (models.Certificate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	validity, err := leafValidity(props)
	if err != nil {
		return nil, err
	}

	pub, err := s.generateKeyPair(props.Alias)
	if err != nil {
		return nil, err
	}

	cert, err := s.authority.SignCertificate(&SignRequest{
		CommonName:      props.CommonName,
		CertificateType: props.CertificateType,
		Validity:        validity,
		PublicKey:       pub,
	})
	if err != nil {
		s.mu.Lock()
		if derr := s.destroyLabelled(props.Alias); derr != nil {
			log.WithError(derr).WithField("alias", props.Alias).Warn("failed to remove key pair after signing failure")
		}
		s.mu.Unlock()
		return nil, err
	}

	return &issuedCertificate{cert: cert, key: models.KeyRef(KeyURI(props.Alias))}, nil
}

// DestroyCertificate implements Store
func (s *PKCS11Store) DestroyCertificate(ctx context.Context, alias string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	return s.destroyLabelled(alias)
}

// destroyLabelled removes every object labelled alias. Caller holds mu.
func (s *PKCS11Store) destroyLabelled(alias string) error {
	if s.closed {
		return ErrStoreClosed
	}

	objs, err := s.findByLabel(alias)
	if err != nil {
		return err
	}
	if len(objs) == 0 {
		return ErrCertificateNotFound
	}

	for _, obj := range objs {
		if err := s.ctx.DestroyObject(s.session, obj); err != nil {
			return fmt.Errorf("failed to destroy object for %s: %w", alias, err)
		}
	}
	return nil
}

// Close logs out and releases the module
func (s *PKCS11Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.ctx.Logout(s.session); err != nil {
		log.WithError(err).Warn("PKCS#11 logout failed")
	}
	if err := s.ctx.CloseSession(s.session); err != nil {
		log.WithError(err).Warn("PKCS#11 close session failed")
	}
	err := s.ctx.Finalize()
	s.ctx.Destroy()
	return err
}

func (s *PKCS11Store) generateKeyPair(alias string) (*rsa.PublicKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	pubTemplate := []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_CLASS, pkcs11.CKO_PUBLIC_KEY),
		pkcs11.NewAttribute(pkcs11.CKA_KEY_TYPE, pkcs11.CKK_RSA),
		pkcs11.NewAttribute(pkcs11.CKA_TOKEN, true),
		pkcs11.NewAttribute(pkcs11.CKA_VERIFY, true),
		pkcs11.NewAttribute(pkcs11.CKA_MODULUS_BITS, 2048),
		pkcs11.NewAttribute(pkcs11.CKA_PUBLIC_EXPONENT, []byte{1, 0, 1}),
		pkcs11.NewAttribute(pkcs11.CKA_LABEL, alias),
		pkcs11.NewAttribute(pkcs11.CKA_ID, []byte(alias)),
	}
	privTemplate := []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_CLASS, pkcs11.CKO_PRIVATE_KEY),
		pkcs11.NewAttribute(pkcs11.CKA_KEY_TYPE, pkcs11.CKK_RSA),
		pkcs11.NewAttribute(pkcs11.CKA_TOKEN, true),
		pkcs11.NewAttribute(pkcs11.CKA_SIGN, true),
		pkcs11.NewAttribute(pkcs11.CKA_DECRYPT, true),
		pkcs11.NewAttribute(pkcs11.CKA_PRIVATE, true),
		pkcs11.NewAttribute(pkcs11.CKA_SENSITIVE, true),
		pkcs11.NewAttribute(pkcs11.CKA_EXTRACTABLE, false),
		pkcs11.NewAttribute(pkcs11.CKA_LABEL, alias),
		pkcs11.NewAttribute(pkcs11.CKA_ID, []byte(alias)),
	}

	pubHandle, _, err := s.ctx.GenerateKeyPair(s.session,
		[]*pkcs11.Mechanism{pkcs11.NewMechanism(pkcs11.CKM_RSA_PKCS_KEY_PAIR_GEN, nil)},
		pubTemplate, privTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key pair for %s: %w", alias, err)
	}

	attrs, err := s.ctx.GetAttributeValue(s.session, pubHandle, []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_MODULUS, nil),
		pkcs11.NewAttribute(pkcs11.CKA_PUBLIC_EXPONENT, nil),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get public key attributes: %w", err)
	}
	if len(attrs) != 2 {
		return nil, errors.New("token returned incomplete public key attributes")
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(attrs[0].Value),
		E: int(new(big.Int).SetBytes(attrs[1].Value).Int64()),
	}, nil
}

// findByLabel returns every token object labelled alias. Callers hold mu.
func (s *PKCS11Store) findByLabel(alias string) ([]pkcs11.ObjectHandle, error) {
	template := []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_LABEL, alias),
	}
	if err := s.ctx.FindObjectsInit(s.session, template); err != nil {
		return nil, fmt.Errorf("failed to init object search: %w", err)
	}

	var all []pkcs11.ObjectHandle
	for {
		objs, _, err := s.ctx.FindObjects(s.session, findBatchSize)
		if err != nil {
			s.ctx.FindObjectsFinal(s.session)
			return nil, fmt.Errorf("failed to find objects: %w", err)
		}
		if len(objs) == 0 {
			break
		}
		all = append(all, objs...)
	}

	if err := s.ctx.FindObjectsFinal(s.session); err != nil {
		return nil, fmt.Errorf("failed to finalize object search: %w", err)
	}
	return all, nil
}

// KeyURI returns the reference handed out for a token held private key
func KeyURI(alias string) string {
	return "pkcs11:object=" + alias
}
