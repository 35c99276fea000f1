// Package dnscheck audits authoritative and recursive name servers: zone
// transfers, open recursion, DNSSEC and dangling CNAME records.
package dnscheck

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/miekg/dns"

	consts "github.com/khanhnv2901/seca-assert/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/seca-assert/internal/shared/errors"
)

const resolvConf = "/etc/resolv.conf"

// Params identifies the zone and the server to question. An empty
// Nameserver falls back to the first server in /etc/resolv.conf.
type Params struct {
	Domain     string        `mapstructure:"domain"`
	Nameserver string        `mapstructure:"nameserver"`
	Port       int           `mapstructure:"port"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

func (p Params) fqdn() (string, error) {
	domain := strings.TrimSpace(p.Domain)
	if domain == "" {
		return "", fmt.Errorf("%w: domain is required", sharedErrors.ErrInvalidParameter)
	}
	return dns.Fqdn(domain), nil
}

func (p Params) timeout() time.Duration {
	if p.Timeout > 0 {
		return p.Timeout
	}
	return consts.DefaultTimeout
}

func (p Params) server() (string, error) {
	host, port := strings.TrimSpace(p.Nameserver), "53"
	if host == "" {
		cfg, err := dns.ClientConfigFromFile(resolvConf)
		if err != nil {
			return "", fmt.Errorf("%w: no nameserver given and %s unreadable: %v", sharedErrors.ErrInvalidParameter, resolvConf, err)
		}
		if len(cfg.Servers) == 0 {
			return "", fmt.Errorf("%w: no nameserver given and none in %s", sharedErrors.ErrInvalidParameter, resolvConf)
		}
		host, port = cfg.Servers[0], cfg.Port
	}
	if p.Port > 0 {
		port = strconv.Itoa(p.Port)
	}
	return net.JoinHostPort(host, port), nil
}

// query sends a single question to the configured server over UDP.
func (p Params) query(ctx context.Context, name string, qtype uint16, configure func(*dns.Msg)) (*dns.Msg, string, error) {
	server, err := p.server()
	if err != nil {
		return nil, "", err
	}
	msg := new(dns.Msg)
	msg.SetQuestion(name, qtype)
	if configure != nil {
		configure(msg)
	}

	client := &dns.Client{Timeout: p.timeout()}
	reply, _, err := client.ExchangeContext(ctx, msg, server)
	if err != nil {
		return nil, server, fmt.Errorf("query %s %s at %s: %w", name, dns.TypeToString[qtype], server, err)
	}
	return reply, server, nil
}
