package format

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"time"

	"github.com/khanhnv2901/seca-assert/internal/application/assert"
	"github.com/khanhnv2901/seca-assert/internal/domain/check"
	"github.com/khanhnv2901/seca-assert/internal/shared/security"
)

var certFiles = fileType{extensions: []string{"pem", "crt", "cer", "der"}, source: "X509/Certificate"}

// parseCertificates reads every certificate of a PEM bundle, falling back
// to DER when the file holds no PEM blocks. Non-certificate blocks such as
// private keys are skipped.
func parseCertificates(path string, data []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	rest, sawPEM := data, false
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		sawPEM = true
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, invalidFile(path, "certificate file", err)
		}
		certs = append(certs, cert)
	}
	if !sawPEM {
		parsed, err := x509.ParseCertificates(data)
		if err != nil {
			return nil, invalidFile(path, "certificate file", err)
		}
		certs = parsed
	}
	if len(certs) == 0 {
		return nil, invalidFile(path, "certificate file", nil)
	}
	return certs, nil
}

func subject(cert *x509.Certificate) string {
	if cert.Subject.CommonName != "" {
		return cert.Subject.CommonName
	}
	return cert.Subject.String()
}

// certInspector adapts a per-certificate test to a file inspector. A file
// is vulnerable when any certificate in it is.
func certInspector(test func(*x509.Certificate) (bool, string)) inspector {
	return func(path string, data []byte) (bool, []string, error) {
		certs, err := parseCertificates(path, data)
		if err != nil {
			return false, nil, err
		}
		var flagged, all []string
		for _, cert := range certs {
			bad, detail := test(cert)
			line := fmt.Sprintf("%s: %s", subject(cert), detail)
			all = append(all, line)
			if bad {
				flagged = append(flagged, line)
			}
		}
		if len(flagged) > 0 {
			return true, flagged, nil
		}
		return false, all, nil
	}
}

// CertIsExpired flags certificate files holding an expired certificate.
var CertIsExpired = fileCheck(assert.Meta{
	Name:        "format.cert.is_expired",
	Description: "OPEN when a certificate file contains an expired certificate.",
	Risk:        check.RiskMedium,
}, certFiles, "Certificate file contains expired certificates", "Certificates in file are within validity",
	certInspector(func(cert *x509.Certificate) (bool, string) {
		return time.Now().After(cert.NotAfter), "not after " + cert.NotAfter.UTC().Format(time.RFC3339)
	}))

// CertHasWeakKey flags certificates with short RSA or ECDSA keys.
var CertHasWeakKey = fileCheck(assert.Meta{
	Name:        "format.cert.has_weak_key",
	Description: "OPEN when a certificate file contains a certificate with a short key.",
	Risk:        check.RiskMedium,
}, certFiles, "Certificate file contains weak keys", "Certificate keys are strong enough",
	certInspector(func(cert *x509.Certificate) (bool, string) {
		alg, bits := security.KeySize(cert.PublicKey)
		return security.IsWeakKey(alg, bits), fmt.Sprintf("%s %d bits", alg, bits)
	}))
