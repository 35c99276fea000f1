package format

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"

	"github.com/pavlo-v-chernykh/keystore-go/v4"
	"golang.org/x/crypto/pkcs12"

	"github.com/khanhnv2901/seca-assert/internal/application/assert"
	"github.com/khanhnv2901/seca-assert/internal/domain/check"
)

const jksMagic = 0xFEEDFEED

var (
	pkcs12Files = fileType{extensions: []string{"p12", "pfx"}, source: "PKCS12/Password"}
	jksFiles    = fileType{extensions: []string{"jks", "keystore"}, source: "JKS/Password"}
)

// commonKeystorePasswords are tried by JKSHasWeakPassword before any
// caller-supplied candidates.
var commonKeystorePasswords = []string{
	"changeit",
	"changeme",
	"password",
	"123456",
	"secret",
	"keystore",
	"android",
	"admin",
}

// pkcs12Opens maps the result of decoding with an empty password to a
// verdict. Only a wrong password means the file is protected.
func pkcs12Opens(path string, err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, pkcs12.ErrIncorrectPassword):
		return false, nil
	default:
		return false, invalidFile(path, "PKCS12 file", err)
	}
}

// PKCS12HasNoPassword flags PKCS12 bundles that open with an empty password.
var PKCS12HasNoPassword = fileCheck(assert.Meta{
	Name:        "format.pkcs12.has_no_password",
	Description: "OPEN when a PKCS12 bundle decodes with an empty password.",
	Risk:        check.RiskHigh,
}, pkcs12Files, "PKCS12 bundle is not password protected", "PKCS12 bundle is password protected",
	func(path string, data []byte) (bool, []string, error) {
		_, err := pkcs12.ToPEM(data, "")
		open, err := pkcs12Opens(path, err)
		if err != nil {
			return false, nil, err
		}
		if open {
			return true, []string{"password: <empty>"}, nil
		}
		return false, nil, nil
	})

func isJKS(data []byte) bool {
	return len(data) >= 8 && binary.BigEndian.Uint32(data) == jksMagic
}

// jksOpens reports whether the keystore's integrity digest verifies under
// password. Callers must have checked the magic number, so any load failure
// is taken as a password mismatch.
func jksOpens(data []byte, password string) bool {
	ks := keystore.New()
	return ks.Load(bytes.NewReader(data), []byte(password)) == nil
}

// JKSHasNoPassword flags Java keystores whose integrity check passes with
// an empty password.
var JKSHasNoPassword = fileCheck(assert.Meta{
	Name:        "format.jks.has_no_password",
	Description: "OPEN when a Java keystore verifies with an empty password.",
	Risk:        check.RiskHigh,
}, jksFiles, "Java keystore is not password protected", "Java keystore is password protected",
	func(path string, data []byte) (bool, []string, error) {
		if !isJKS(data) {
			return false, nil, invalidFile(path, "JKS keystore", nil)
		}
		if jksOpens(data, "") {
			return true, []string{"password: <empty>"}, nil
		}
		return false, nil, nil
	})

// WeakPasswordParams configures JKSHasWeakPassword. Passwords extends the
// built-in list of common keystore passwords.
type WeakPasswordParams struct {
	Params    `mapstructure:",squash"`
	Passwords []string `mapstructure:"passwords"`
}

// JKSHasWeakPassword flags Java keystores protected by a common or
// caller-listed password.
var JKSHasWeakPassword = assert.API(assert.Meta{
	Name:        "format.jks.has_weak_password",
	Description: "OPEN when a Java keystore verifies with a guessable password.",
	Risk:        check.RiskHigh,
	Kind:        check.KindSAST,
}, assert.UnknownIf(func(_ context.Context, p WeakPasswordParams) (check.Outcome, error) {
	if err := p.validate(); err != nil {
		return check.Outcome{}, err
	}
	candidates := append([]string{""}, commonKeystorePasswords...)
	candidates = append(candidates, p.Passwords...)

	vulns, safes, err := inspectFiles(p.Path, p.Exclude, jksFiles, func(path string, data []byte) (bool, []string, error) {
		if !isJKS(data) {
			return false, nil, invalidFile(path, "JKS keystore", nil)
		}
		for _, pw := range candidates {
			if jksOpens(data, pw) {
				if pw == "" {
					pw = "<empty>"
				}
				return true, []string{"password: " + pw}, nil
			}
		}
		return false, nil, nil
	})
	if err != nil {
		return check.Outcome{}, err
	}
	return check.Classify("Java keystore uses a weak password", "Java keystore password was not guessed", vulns, safes), nil
}, assert.FileErrors...))
