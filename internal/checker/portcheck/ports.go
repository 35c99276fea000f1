// Package portcheck reports TCP services a host exposes and how risky they
// are to leave reachable.
package portcheck

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/khanhnv2901/seca-assert/internal/application/assert"
	"github.com/khanhnv2901/seca-assert/internal/domain/check"
	"github.com/khanhnv2901/seca-assert/internal/infrastructure/async"
	"github.com/khanhnv2901/seca-assert/internal/infrastructure/netprobe"
	sharedErrors "github.com/khanhnv2901/seca-assert/internal/shared/errors"
	"github.com/khanhnv2901/seca-assert/internal/shared/target"
)

const (
	sourcePort         = "TCP/Port"
	defaultWorkers     = 10
	defaultScanTimeout = 2 * time.Second
)

// commonPorts is scanned when no port list is given.
var commonPorts = []int{21, 22, 23, 25, 53, 80, 110, 143, 443, 445, 3306, 3389, 5432, 5900, 6379, 8080, 8443, 27017}

var services = map[int]string{
	21:    "ftp",
	22:    "ssh",
	23:    "telnet",
	25:    "smtp",
	53:    "dns",
	80:    "http",
	110:   "pop3",
	143:   "imap",
	443:   "https",
	445:   "smb",
	3306:  "mysql",
	3389:  "rdp",
	5432:  "postgresql",
	5900:  "vnc",
	6379:  "redis",
	8080:  "http-alt",
	8443:  "https-alt",
	27017: "mongodb",
}

// portRisk mirrors the exposure guidance used for internet-facing hosts.
func portRisk(port int) check.Risk {
	switch port {
	case 23, 3389, 5900, 21, 445, 3306, 5432, 6379, 27017:
		return check.RiskHigh
	case 22, 25, 110, 143, 8080, 8443:
		return check.RiskMedium
	default:
		return check.RiskLow
	}
}

func serviceName(port int) string {
	if name, ok := services[port]; ok {
		return name
	}
	return "unknown"
}

// PortParams configures IsPortOpen.
type PortParams struct {
	Host    string        `mapstructure:"host"`
	Port    int           `mapstructure:"port"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// IsPortOpen reports whether a single TCP port accepts connections.
var IsPortOpen = assert.API(assert.Meta{
	Name:        "proto.tcp.is_port_open",
	Description: "OPEN when the TCP port accepts connections.",
	Risk:        check.RiskLow,
	Kind:        check.KindDAST,
}, assert.UnknownIf(func(ctx context.Context, p PortParams) (check.Outcome, error) {
	if strings.TrimSpace(p.Host) == "" || p.Port <= 0 || p.Port > 65535 {
		return check.Outcome{}, fmt.Errorf("%w: host and a valid port are required", sharedErrors.ErrInvalidParameter)
	}
	addr := target.Address(p.Host, p.Port, "")
	open, err := probe(ctx, addr, p.Timeout)
	if err != nil {
		return check.Outcome{}, err
	}
	unit := check.NewUnit(addr, []string{fmt.Sprintf("%d/tcp %s", p.Port, serviceName(p.Port))}, check.WithSource(sourcePort))
	if open {
		return check.Open("Port is open", unit), nil
	}
	return check.Closed("Port is closed", unit), nil
}, assert.NetworkErrors...))

// ScanParams configures HasRiskyPortsOpen. Risky overrides which ports
// count as findings; by default every high-risk port does.
type ScanParams struct {
	Host    string        `mapstructure:"host"`
	Ports   []int         `mapstructure:"ports"`
	Risky   []int         `mapstructure:"risky"`
	Workers int           `mapstructure:"workers"`
	Timeout time.Duration `mapstructure:"timeout"`
}

func (p ScanParams) isRisky(port int) bool {
	if len(p.Risky) == 0 {
		return portRisk(port) == check.RiskHigh
	}
	for _, r := range p.Risky {
		if r == port {
			return true
		}
	}
	return false
}

type portState struct {
	port   int
	open   bool
	banner string
}

// HasRiskyPortsOpen scans a port list and flags open ports whose services
// should not face untrusted networks.
var HasRiskyPortsOpen = assert.API(assert.Meta{
	Name:        "proto.tcp.has_risky_ports_open",
	Description: "OPEN when a high-risk service port such as Telnet, RDP, SMB or a database is reachable.",
	Risk:        check.RiskHigh,
	Kind:        check.KindDAST,
}, assert.UnknownIf(func(ctx context.Context, p ScanParams) (check.Outcome, error) {
	host := target.Host(strings.TrimSpace(p.Host))
	if host == "" {
		return check.Outcome{}, fmt.Errorf("%w: host is required", sharedErrors.ErrInvalidParameter)
	}
	ports := p.Ports
	if len(ports) == 0 {
		ports = commonPorts
	}
	workers := p.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = defaultScanTimeout
	}

	states, err := async.RunFunc(ctx, func(ctx context.Context, port int) (portState, error) {
		addr := net.JoinHostPort(host, strconv.Itoa(port))
		open, err := probe(ctx, addr, timeout)
		if err != nil {
			return portState{}, err
		}
		state := portState{port: port, open: open}
		if open {
			// Greeting is best effort; most HTTP services say nothing first.
			state.banner, _ = netprobe.Banner(ctx, addr, time.Second, nil)
		}
		return state, nil
	}, ports, workers)
	if err != nil {
		return check.Outcome{}, err
	}

	sort.Slice(states, func(i, j int) bool { return states[i].port < states[j].port })
	var vulns, safes []check.Unit
	for _, st := range states {
		if !st.open {
			continue
		}
		specific := []string{fmt.Sprintf("%d/tcp %s open", st.port, serviceName(st.port))}
		if st.banner != "" {
			specific = append(specific, "banner: "+st.banner)
		}
		unit := check.NewUnit(net.JoinHostPort(host, strconv.Itoa(st.port)), specific, check.WithSource(sourcePort))
		if p.isRisky(st.port) {
			vulns = append(vulns, unit)
		} else {
			safes = append(safes, unit)
		}
	}
	if len(vulns) == 0 && len(safes) == 0 {
		safes = append(safes, check.NewUnit(host, []string{fmt.Sprintf("%d ports closed", len(ports))}, check.WithSource(sourcePort)))
	}
	return check.Classify("High-risk ports are exposed", "No high-risk ports are exposed", vulns, safes), nil
}, assert.NetworkErrors...))

// probe reports whether addr accepts TCP connections. Refused and timed-out
// connections mean closed; resolution failures are returned.
func probe(ctx context.Context, addr string, timeout time.Duration) (bool, error) {
	conn, err := netprobe.Dial(ctx, addr, timeout)
	if err == nil {
		_ = conn.Close()
		return true, nil
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) || ctx.Err() != nil {
		return false, err
	}
	return false, nil
}

// Register adds the port checks to r.
func Register(r *assert.Registry) {
	assert.MustRegister(r, IsPortOpen)
	assert.MustRegister(r, HasRiskyPortsOpen)
}
