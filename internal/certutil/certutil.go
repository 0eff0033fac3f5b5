// Package certutil handles the self-signed certificate pair the Gateway
// presents over QUIC and the PEM chain splitting needed to read it back from
// a file that may bundle more than one certificate.
package certutil

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"time"
)

// DefaultValidity is how long a generated self-signed certificate remains
// valid, used when an operator runs reform-gatewayd without a supplied cert.
const DefaultValidity = 365 * 24 * time.Hour

// GenerateSelfSigned produces a fresh ECDSA P-256 self-signed certificate
// and key, PEM-encoded, valid for the given duration from now. Used to
// bootstrap a Gateway with no operator-supplied certificate.
func GenerateSelfSigned(validFor time.Duration) (certPEM, keyPEM []byte, err error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("certutil: generate key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, nil, fmt.Errorf("certutil: generate serial: %w", err)
	}

	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: "reform"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(validFor),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
		DNSNames:              []string{"reform"},
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
	if err != nil {
		return nil, nil, fmt.Errorf("certutil: create certificate: %w", err)
	}

	keyDER, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		return nil, nil, fmt.Errorf("certutil: marshal key: %w", err)
	}

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	return certPEM, keyPEM, nil
}

// SplitChain splits a PEM bundle into its individual CERTIFICATE blocks,
// re-encoded one per entry. A cert file containing an intermediate chain
// yields one entry per certificate, in the order they appear in the file.
func SplitChain(bundlePEM []byte) ([][]byte, error) {
	var out [][]byte
	rest := bundlePEM
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		out = append(out, pem.EncodeToMemory(block))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("certutil: no certificate blocks found")
	}
	return out, nil
}

// FirstLeaf returns the first certificate block in bundlePEM, parsed.
// Used when the Node needs only to inspect the Gateway's leaf certificate
// (e.g. to log its common name, serial and expiry) rather than the whole
// chain.
func FirstLeaf(bundlePEM []byte) (*x509.Certificate, error) {
	chain, err := SplitChain(bundlePEM)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(chain[0])
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("certutil: parse leaf: %w", err)
	}
	return cert, nil
}

