package dnscheck

import (
	"context"
	"fmt"

	"github.com/miekg/dns"

	"github.com/khanhnv2901/seca-assert/internal/application/assert"
	"github.com/khanhnv2901/seca-assert/internal/domain/check"
)

const (
	sourceZone      = "DNS/Zone/Transfer"
	sourceRecursion = "DNS/Server/Recursion"
	sourceDNSSEC    = "DNS/Zone/DNSSEC"
)

// IsXfrEnabled requests a full zone transfer over TCP.
var IsXfrEnabled = assert.API(assert.Meta{
	Name:        "proto.dns.is_xfr_enabled",
	Description: "OPEN when the name server answers an AXFR request for the zone.",
	Risk:        check.RiskHigh,
	Kind:        check.KindDAST,
}, assert.UnknownIf(func(ctx context.Context, p Params) (check.Outcome, error) {
	zone, err := p.fqdn()
	if err != nil {
		return check.Outcome{}, err
	}
	server, err := p.server()
	if err != nil {
		return check.Outcome{}, err
	}

	msg := new(dns.Msg)
	msg.SetAxfr(zone)
	transfer := &dns.Transfer{DialTimeout: p.timeout(), ReadTimeout: p.timeout()}
	envelopes, err := transfer.In(msg, server)
	if err != nil {
		return check.Outcome{}, fmt.Errorf("axfr %s at %s: %w", zone, server, err)
	}

	records := 0
	var transferErr error
	for env := range envelopes {
		if env.Error != nil {
			transferErr = env.Error
			continue
		}
		records += len(env.RR)
	}

	where := fmt.Sprintf("%s@%s", zone, server)
	if transferErr == nil && records > 0 {
		unit := check.NewUnit(where, []string{fmt.Sprintf("%d records transferred", records)}, check.WithSource(sourceZone))
		return check.Open("Zone transfer is enabled", unit), nil
	}
	detail := "transfer refused"
	if transferErr != nil {
		detail = transferErr.Error()
	}
	return check.Closed("Zone transfer is not enabled",
		check.NewUnit(where, []string{detail}, check.WithSource(sourceZone))), nil
}, assert.NetworkErrors...))

// RecursionParams configures HasRecursion. Probe is a name outside the
// server's zones, resolved only by a recursive server.
type RecursionParams struct {
	Params `mapstructure:",squash"`
	Probe  string `mapstructure:"probe"`
}

const defaultRecursionProbe = "example.com."

// HasRecursion asks the server to resolve a foreign name.
var HasRecursion = assert.API(assert.Meta{
	Name:        "proto.dns.has_recursion",
	Description: "OPEN when the name server resolves names outside its zones for anyone.",
	Risk:        check.RiskMedium,
	Kind:        check.KindDAST,
}, assert.UnknownIf(func(ctx context.Context, p RecursionParams) (check.Outcome, error) {
	probe := p.Probe
	if probe == "" {
		probe = defaultRecursionProbe
	}
	reply, server, err := p.query(ctx, dns.Fqdn(probe), dns.TypeA, func(m *dns.Msg) {
		m.RecursionDesired = true
	})
	if err != nil {
		return check.Outcome{}, err
	}

	specific := []string{
		"probe: " + probe,
		"rcode: " + dns.RcodeToString[reply.Rcode],
		fmt.Sprintf("recursion available: %t", reply.RecursionAvailable),
	}
	unit := check.NewUnit(server, specific, check.WithSource(sourceRecursion))
	if reply.RecursionAvailable && reply.Rcode == dns.RcodeSuccess && len(reply.Answer) > 0 {
		return check.Open("Name server allows recursive queries", unit), nil
	}
	return check.Closed("Name server does not allow recursive queries", unit), nil
}, assert.NetworkErrors...))

// HasNoDNSSEC looks for DNSKEY records at the zone apex.
var HasNoDNSSEC = assert.API(assert.Meta{
	Name:        "proto.dns.has_no_dnssec",
	Description: "OPEN when the zone publishes no DNSKEY records.",
	Risk:        check.RiskMedium,
	Kind:        check.KindDAST,
}, assert.UnknownIf(func(ctx context.Context, p Params) (check.Outcome, error) {
	zone, err := p.fqdn()
	if err != nil {
		return check.Outcome{}, err
	}
	reply, server, err := p.query(ctx, zone, dns.TypeDNSKEY, func(m *dns.Msg) {
		m.SetEdns0(4096, true)
	})
	if err != nil {
		return check.Outcome{}, err
	}

	keys := 0
	for _, rr := range reply.Answer {
		if _, ok := rr.(*dns.DNSKEY); ok {
			keys++
		}
	}
	where := fmt.Sprintf("%s@%s", zone, server)
	unit := check.NewUnit(where, []string{fmt.Sprintf("%d DNSKEY records", keys)}, check.WithSource(sourceDNSSEC))
	if keys == 0 {
		return check.Open("Zone is not signed with DNSSEC", unit), nil
	}
	return check.Closed("Zone is signed with DNSSEC", unit), nil
}, assert.NetworkErrors...))

// Register adds every DNS check to r.
func Register(r *assert.Registry) {
	assert.MustRegister(r, IsXfrEnabled)
	assert.MustRegister(r, HasRecursion)
	assert.MustRegister(r, HasNoDNSSEC)
	assert.MustRegister(r, HasSubdomainTakeover)
}
