package pki

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"slices"
	"time"

	corev1 "k8s.io/api/core/v1"
)

const (
	// KeyBits is the RSA key size of the CA and serving keys.
	KeyBits = 2048

	// Validity is the lifetime of issued certificates.
	Validity = 88600 * time.Hour

	// RenewBefore is the remaining lifetime below which a bundle is reissued.
	RenewBefore = 30 * 24 * time.Hour

	// CAKey is the Secret data key holding the CA certificate.
	CAKey = "ca.crt"
)

// Request describes the certificates to issue.
type Request struct {
	// CommonName of the CA.
	CommonName string
	// Service and Namespace of the webhook; the serving certificate is valid
	// for <service>.<namespace> and <service>.<namespace>.svc.
	Service   string
	Namespace string
}

// DNSNames returns the names the serving certificate must cover.
func (r Request) DNSNames() []string {
	return []string{
		fmt.Sprintf("%s.%s", r.Service, r.Namespace),
		fmt.Sprintf("%s.%s.svc", r.Service, r.Namespace),
	}
}

// Bundle is a CA plus a serving certificate and key, all PEM encoded.
type Bundle struct {
	CACert  []byte
	TLSCert []byte
	TLSKey  []byte
}

// SecretData returns the bundle keyed as a kubernetes.io/tls Secret.
func (b *Bundle) SecretData() map[string][]byte {
	return map[string][]byte{
		CAKey:                   b.CACert,
		corev1.TLSCertKey:       b.TLSCert,
		corev1.TLSPrivateKeyKey: b.TLSKey,
	}
}

// Generate issues a new CA and serving certificate.
func Generate(req Request) (*Bundle, error) {
	return generate(req, time.Now())
}

func generate(req Request, now time.Time) (*Bundle, error) {
	if req.CommonName == "" || req.Service == "" || req.Namespace == "" {
		return nil, errors.New("common name, service and namespace are required")
	}

	caKey, err := newKey()
	if err != nil {
		return nil, err
	}
	caSerial, err := serialNumber()
	if err != nil {
		return nil, err
	}
	caTemplate := &x509.Certificate{
		SerialNumber:          caSerial,
		Subject:               pkix.Name{CommonName: req.CommonName},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(Validity),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	caDER, err := x509.CreateCertificate(rand.Reader, caTemplate, caTemplate, &caKey.PublicKey, caKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create CA certificate: %w", err)
	}
	caCert, err := x509.ParseCertificate(caDER)
	if err != nil {
		return nil, fmt.Errorf("failed to parse CA certificate: %w", err)
	}

	key, err := newKey()
	if err != nil {
		return nil, err
	}
	serial, err := serialNumber()
	if err != nil {
		return nil, err
	}
	dnsNames := req.DNSNames()
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: dnsNames[0]},
		DNSNames:     dnsNames,
		NotBefore:    now.Add(-time.Hour),
		NotAfter:     now.Add(Validity),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, template, caCert, &key.PublicKey, caKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create serving certificate: %w", err)
	}

	return &Bundle{
		CACert:  pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: caDER}),
		TLSCert: pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
		TLSKey:  pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}),
	}, nil
}

// LoadOrGenerate reuses the bundle in existing Secret data when it is still
// valid for req, and issues a new one otherwise. The boolean reports whether
// the existing bundle was reused.
func LoadOrGenerate(existing map[string][]byte, req Request) (*Bundle, bool, error) {
	now := time.Now()
	if len(existing) > 0 {
		bundle := &Bundle{
			CACert:  existing[CAKey],
			TLSCert: existing[corev1.TLSCertKey],
			TLSKey:  existing[corev1.TLSPrivateKeyKey],
		}
		if err := Verify(bundle, req, now.Add(RenewBefore)); err == nil {
			return bundle, true, nil
		}
	}
	bundle, err := generate(req, now)
	if err != nil {
		return nil, false, err
	}
	return bundle, false, nil
}

// Verify checks that the serving certificate chains to the CA, covers the
// requested DNS names, matches the private key and is still valid at the
// given time.
func Verify(b *Bundle, req Request, at time.Time) error {
	caCert, err := parseCertificate(b.CACert)
	if err != nil {
		return fmt.Errorf("invalid CA certificate: %w", err)
	}
	cert, err := parseCertificate(b.TLSCert)
	if err != nil {
		return fmt.Errorf("invalid serving certificate: %w", err)
	}
	key, err := parseKey(b.TLSKey)
	if err != nil {
		return fmt.Errorf("invalid serving key: %w", err)
	}

	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok || !pub.Equal(&key.PublicKey) {
		return errors.New("serving key does not match certificate")
	}
	for _, name := range req.DNSNames() {
		if !slices.Contains(cert.DNSNames, name) {
			return fmt.Errorf("serving certificate does not cover %s", name)
		}
	}

	roots := x509.NewCertPool()
	roots.AddCert(caCert)
	_, err = cert.Verify(x509.VerifyOptions{
		DNSName:     req.DNSNames()[0],
		Roots:       roots,
		CurrentTime: at,
		KeyUsages:   []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	})
	if err != nil {
		return fmt.Errorf("serving certificate does not verify: %w", err)
	}
	return nil
}

func newKey() (*rsa.PrivateKey, error) {
	key, err := rsa.GenerateKey(rand.Reader, KeyBits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA private key: %w", err)
	}
	return key, nil
}

func serialNumber() (*big.Int, error) {
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}
	return serial, nil
}

func parseCertificate(data []byte) (*x509.Certificate, error) {
	block, _ := pem.Decode(bytes.TrimSpace(data))
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, errors.New("no PEM certificate found")
	}
	return x509.ParseCertificate(block.Bytes)
}

func parseKey(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(bytes.TrimSpace(data))
	if block == nil {
		return nil, errors.New("no PEM key found")
	}
	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("private key is not RSA")
		}
		return rsaKey, nil
	default:
		return nil, fmt.Errorf("unsupported key type %q", block.Type)
	}
}
