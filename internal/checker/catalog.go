package checker

import (
	"github.com/khanhnv2901/seca-assert/internal/application/assert"
	"github.com/khanhnv2901/seca-assert/internal/checker/dnscheck"
	"github.com/khanhnv2901/seca-assert/internal/checker/format"
	"github.com/khanhnv2901/seca-assert/internal/checker/ftpcheck"
	"github.com/khanhnv2901/seca-assert/internal/checker/httpcheck"
	"github.com/khanhnv2901/seca-assert/internal/checker/k8scheck"
	"github.com/khanhnv2901/seca-assert/internal/checker/mysqlcheck"
	"github.com/khanhnv2901/seca-assert/internal/checker/objectstore"
	"github.com/khanhnv2901/seca-assert/internal/checker/pgcheck"
	"github.com/khanhnv2901/seca-assert/internal/checker/portcheck"
	"github.com/khanhnv2901/seca-assert/internal/checker/sast"
	"github.com/khanhnv2901/seca-assert/internal/checker/sca"
	"github.com/khanhnv2901/seca-assert/internal/checker/smtpcheck"
	"github.com/khanhnv2901/seca-assert/internal/checker/sshcheck"
	"github.com/khanhnv2901/seca-assert/internal/checker/tlscheck"
)

// Family groups the checks of one package under a display name.
type Family struct {
	Name     string
	Register func(*assert.Registry)
}

// Families lists every check family in display order.
var Families = []Family{
	{Name: "dns", Register: dnscheck.Register},
	{Name: "ftp", Register: ftpcheck.Register},
	{Name: "smtp", Register: smtpcheck.Register},
	{Name: "ssh", Register: sshcheck.Register},
	{Name: "ports", Register: portcheck.Register},
	{Name: "http", Register: httpcheck.Register},
	{Name: "tls", Register: tlscheck.Register},
	{Name: "mysql", Register: mysqlcheck.Register},
	{Name: "postgres", Register: pgcheck.Register},
	{Name: "objectstore", Register: objectstore.Register},
	{Name: "kubernetes", Register: k8scheck.Register},
	{Name: "sast", Register: sast.Register},
	{Name: "format", Register: format.Register},
	{Name: "sca", Register: sca.Register},
}

// NewRegistry returns a registry holding every built-in check.
func NewRegistry() *assert.Registry {
	r := assert.NewRegistry()
	for _, f := range Families {
		f.Register(r)
	}
	return r
}
