package tlscheck

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"sort"
	"time"

	"github.com/khanhnv2901/seca-assert/internal/application/assert"
	"github.com/khanhnv2901/seca-assert/internal/domain/check"
	consts "github.com/khanhnv2901/seca-assert/internal/shared/constants"
	"github.com/khanhnv2901/seca-assert/internal/shared/security"
)

const (
	sourceCertificate = "TLS/Certificate"
	sourceProtocol    = "TLS/Protocol"
	sourceCipher      = "TLS/CipherSuite"
)

// weakCipherSuites are offered together by AllowsWeakCiphers. The server
// picking any of them is a finding.
var weakCipherSuites = map[uint16]string{
	tls.TLS_RSA_WITH_RC4_128_SHA:                "TLS_RSA_WITH_RC4_128_SHA",
	tls.TLS_RSA_WITH_3DES_EDE_CBC_SHA:           "TLS_RSA_WITH_3DES_EDE_CBC_SHA",
	tls.TLS_RSA_WITH_AES_128_CBC_SHA:            "TLS_RSA_WITH_AES_128_CBC_SHA",
	tls.TLS_RSA_WITH_AES_256_CBC_SHA:            "TLS_RSA_WITH_AES_256_CBC_SHA",
	tls.TLS_ECDHE_ECDSA_WITH_RC4_128_SHA:        "TLS_ECDHE_ECDSA_WITH_RC4_128_SHA",
	tls.TLS_ECDHE_RSA_WITH_RC4_128_SHA:          "TLS_ECDHE_RSA_WITH_RC4_128_SHA",
	tls.TLS_ECDHE_RSA_WITH_3DES_EDE_CBC_SHA:     "TLS_ECDHE_RSA_WITH_3DES_EDE_CBC_SHA",
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_CBC_SHA256: "TLS_ECDHE_ECDSA_WITH_AES_128_CBC_SHA256",
}

// weakVersions are probed by AllowsWeakProtocol, oldest first.
var weakVersions = []uint16{tls.VersionTLS10, tls.VersionTLS11}

type certInspector func(cert *x509.Certificate, p CertParams) (bool, []string)

func certCheck(meta assert.Meta, openMsg, closedMsg string, inspect certInspector) *assert.Check[CertParams] {
	return assert.API(meta, assert.UnknownIf(func(ctx context.Context, p CertParams) (check.Outcome, error) {
		cert, addr, err := peerCertificate(ctx, p.Params)
		if err != nil {
			return check.Outcome{}, err
		}
		vulnerable, details := inspect(cert, p)
		specific := append([]string{"subject: " + cert.Subject.String()}, details...)
		unit := check.NewUnit(addr, specific, check.WithSource(sourceCertificate))
		if vulnerable {
			return check.Open(openMsg, unit), nil
		}
		return check.Closed(closedMsg, unit), nil
	}, assert.NetworkErrors...))
}

// CertParams configures the certificate checks. Days only applies to
// IsCertAboutToExpire.
type CertParams struct {
	Params `mapstructure:",squash"`
	Days   int `mapstructure:"days"`
}

var IsCertExpired = certCheck(assert.Meta{
	Name:        "proto.tls.is_cert_expired",
	Description: "OPEN when the certificate has expired.",
	Risk:        check.RiskHigh,
	Kind:        check.KindDAST,
}, "Certificate has expired", "Certificate has not expired", certExpired)

var IsCertAboutToExpire = certCheck(assert.Meta{
	Name:        "proto.tls.is_cert_about_to_expire",
	Description: "OPEN when the certificate expires within the given number of days.",
	Risk:        check.RiskMedium,
	Kind:        check.KindDAST,
}, "Certificate is about to expire", "Certificate is not about to expire", certExpiresSoon)

var IsSelfSigned = certCheck(assert.Meta{
	Name:        "proto.tls.is_self_signed",
	Description: "OPEN when the certificate is signed by its own key.",
	Risk:        check.RiskMedium,
	Kind:        check.KindDAST,
}, "Certificate is self-signed", "Certificate is signed by a different issuer", certSelfSigned)

var IsSHA1Used = certCheck(assert.Meta{
	Name:        "proto.tls.is_sha1_used",
	Description: "OPEN when the certificate is signed with SHA-1 or MD5.",
	Risk:        check.RiskMedium,
	Kind:        check.KindDAST,
}, "Certificate uses a weak signature algorithm", "Certificate uses a strong signature algorithm", certWeakSignature)

var HasWeakKey = certCheck(assert.Meta{
	Name:        "proto.tls.has_weak_key",
	Description: "OPEN when the certificate key is shorter than 2048-bit RSA or 224-bit ECC.",
	Risk:        check.RiskHigh,
	Kind:        check.KindDAST,
}, "Certificate key is too short", "Certificate key length is sufficient", certWeakKey)

func certExpired(cert *x509.Certificate, _ CertParams) (bool, []string) {
	return time.Now().After(cert.NotAfter), []string{"not after: " + cert.NotAfter.Format(time.RFC3339)}
}

func certExpiresSoon(cert *x509.Certificate, p CertParams) (bool, []string) {
	window := consts.TLSSoonExpiryWindow
	if p.Days > 0 {
		window = time.Duration(p.Days) * 24 * time.Hour
	}
	remaining := time.Until(cert.NotAfter)
	days := int(remaining.Hours() / 24)
	return remaining < window, []string{fmt.Sprintf("expires in %d days", days)}
}

func certSelfSigned(cert *x509.Certificate, _ CertParams) (bool, []string) {
	return security.IsSelfSigned(cert), []string{"issuer: " + cert.Issuer.String()}
}

func certWeakSignature(cert *x509.Certificate, _ CertParams) (bool, []string) {
	return security.IsWeakSignature(cert.SignatureAlgorithm), []string{"signature: " + cert.SignatureAlgorithm.String()}
}

func certWeakKey(cert *x509.Certificate, _ CertParams) (bool, []string) {
	alg, bits := security.KeySize(cert.PublicKey)
	return security.IsWeakKey(alg, bits), []string{fmt.Sprintf("key: %s %d bits", alg, bits)}
}

// ProtocolParams configures AllowsWeakProtocol and AllowsWeakCiphers.
type ProtocolParams struct {
	Params `mapstructure:",squash"`
}

// AllowsWeakProtocol tries a handshake pinned to each pre-1.2 version.
var AllowsWeakProtocol = assert.API(assert.Meta{
	Name:        "proto.tls.allows_weak_protocol",
	Description: "OPEN when the server completes a handshake with TLS 1.0 or TLS 1.1.",
	Risk:        check.RiskHigh,
	Kind:        check.KindDAST,
}, assert.UnknownIf(func(ctx context.Context, p ProtocolParams) (check.Outcome, error) {
	addr, err := p.address()
	if err != nil {
		return check.Outcome{}, err
	}
	var vulns, safes []check.Unit
	for _, version := range weakVersions {
		_, ok, err := handshake(ctx, p.Params, &tls.Config{MinVersion: version, MaxVersion: version})
		if err != nil {
			return check.Outcome{}, err
		}
		unit := check.NewUnit(addr, []string{versionName(version)}, check.WithSource(sourceProtocol))
		if ok {
			vulns = append(vulns, unit)
		} else {
			safes = append(safes, unit)
		}
	}
	return check.Classify("Server accepts deprecated TLS versions",
		"Server rejects deprecated TLS versions", vulns, safes), nil
}, assert.NetworkErrors...))

// AllowsWeakCiphers offers only weak TLS 1.2 suites and reports the one the
// server picks, if any.
var AllowsWeakCiphers = assert.API(assert.Meta{
	Name:        "proto.tls.allows_weak_ciphers",
	Description: "OPEN when the server negotiates an RC4, 3DES or non-AEAD cipher suite.",
	Risk:        check.RiskHigh,
	Kind:        check.KindDAST,
}, assert.UnknownIf(func(ctx context.Context, p ProtocolParams) (check.Outcome, error) {
	addr, err := p.address()
	if err != nil {
		return check.Outcome{}, err
	}
	state, ok, err := handshake(ctx, p.Params, &tls.Config{
		MinVersion:   tls.VersionTLS10,
		MaxVersion:   tls.VersionTLS12,
		CipherSuites: weakSuiteIDs(),
	})
	if err != nil {
		return check.Outcome{}, err
	}
	if ok {
		unit := check.NewUnit(addr,
			[]string{weakCipherSuites[state.CipherSuite], versionName(state.Version)},
			check.WithSource(sourceCipher))
		return check.Open("Server negotiates weak cipher suites", unit), nil
	}
	unit := check.NewUnit(addr, []string{fmt.Sprintf("%d weak suites rejected", len(weakCipherSuites))},
		check.WithSource(sourceCipher))
	return check.Closed("Server rejects weak cipher suites", unit), nil
}, assert.NetworkErrors...))

func weakSuiteIDs() []uint16 {
	ids := make([]uint16, 0, len(weakCipherSuites))
	for id := range weakCipherSuites {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Register adds every TLS check to r.
func Register(r *assert.Registry) {
	assert.MustRegister(r, IsCertExpired)
	assert.MustRegister(r, IsCertAboutToExpire)
	assert.MustRegister(r, IsSelfSigned)
	assert.MustRegister(r, IsSHA1Used)
	assert.MustRegister(r, HasWeakKey)
	assert.MustRegister(r, AllowsWeakProtocol)
	assert.MustRegister(r, AllowsWeakCiphers)
}
