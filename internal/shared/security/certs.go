package security

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"strings"
)

// Minimum key sizes below which a certificate key counts as weak.
const (
	MinRSABits   = 2048
	MinECDSABits = 224
)

// IsSelfSigned reports whether cert names itself as issuer and verifies
// under its own public key.
func IsSelfSigned(cert *x509.Certificate) bool {
	if cert.Subject.String() != cert.Issuer.String() {
		return false
	}
	return cert.CheckSignature(cert.SignatureAlgorithm, cert.RawTBSCertificate, cert.Signature) == nil
}

// IsWeakSignature reports whether alg relies on SHA-1, MD5 or MD2.
func IsWeakSignature(alg x509.SignatureAlgorithm) bool {
	name := strings.ToLower(alg.String())
	return strings.Contains(name, "sha1") || strings.Contains(name, "md5") || strings.Contains(name, "md2")
}

// KeySize returns the algorithm name and size in bits of a public key.
func KeySize(pub any) (string, int) {
	switch key := pub.(type) {
	case *rsa.PublicKey:
		return "RSA", key.N.BitLen()
	case *ecdsa.PublicKey:
		return "ECDSA", key.Curve.Params().BitSize
	case ed25519.PublicKey:
		return "Ed25519", 256
	default:
		return fmt.Sprintf("%T", pub), 0
	}
}

// IsWeakKey applies the minimum sizes to the output of KeySize.
func IsWeakKey(alg string, bits int) bool {
	switch alg {
	case "RSA":
		return bits < MinRSABits
	case "ECDSA":
		return bits < MinECDSABits
	default:
		return false
	}
}
