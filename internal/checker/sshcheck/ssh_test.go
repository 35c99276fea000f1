package sshcheck

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"net"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/khanhnv2901/seca-assert/internal/application/assert"
	"github.com/khanhnv2901/seca-assert/internal/domain/check"
)

// startSSH runs a server that completes key exchange and then rejects
// every login.
func startSSH(t *testing.T, configure func(*ssh.ServerConfig)) Params {
	t.Helper()
	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate host key: %v", err)
	}
	signer, err := ssh.NewSignerFromKey(key)
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	cfg := &ssh.ServerConfig{
		PublicKeyCallback: func(ssh.ConnMetadata, ssh.PublicKey) (*ssh.Permissions, error) {
			return nil, errors.New("denied")
		},
	}
	if configure != nil {
		configure(cfg)
	}
	cfg.AddHostKey(signer)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				_, _, _, _ = ssh.NewServerConn(conn, cfg)
			}()
		}
	}()
	return Params{Host: "127.0.0.1", Port: ln.Addr().(*net.TCPAddr).Port, Timeout: 3 * time.Second}
}

func run(t *testing.T, c *assert.Check[Params], p Params) *check.Result {
	t.Helper()
	result, err := c.Run(context.Background(), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return result
}

func TestIsCBCUsed(t *testing.T) {
	weak := startSSH(t, func(c *ssh.ServerConfig) {
		c.Ciphers = []string{"aes128-ctr", "aes128-cbc"}
	})
	strong := startSSH(t, func(c *ssh.ServerConfig) {
		c.Ciphers = []string{"aes128-gcm@openssh.com", "aes256-ctr"}
	})

	if got := run(t, IsCBCUsed, weak).Status(); got != check.StatusOpen {
		t.Errorf("expected OPEN for CBC server, got %s", got)
	}
	if got := run(t, IsCBCUsed, strong).Status(); got != check.StatusClosed {
		t.Errorf("expected CLOSED for CTR/GCM server, got %s", got)
	}
}

func TestIsHMACUsed(t *testing.T) {
	weak := startSSH(t, func(c *ssh.ServerConfig) {
		c.MACs = []string{"hmac-sha2-256", "hmac-sha1"}
	})
	strong := startSSH(t, func(c *ssh.ServerConfig) {
		c.MACs = []string{"hmac-sha2-256", "hmac-sha2-512"}
	})

	if got := run(t, IsHMACUsed, weak).Status(); got != check.StatusOpen {
		t.Errorf("expected OPEN for SHA-1 MAC server, got %s", got)
	}
	if got := run(t, IsHMACUsed, strong).Status(); got != check.StatusClosed {
		t.Errorf("expected CLOSED for SHA-2 only server, got %s", got)
	}
}

func TestAcceptsPasswordAuth(t *testing.T) {
	password := startSSH(t, func(c *ssh.ServerConfig) {
		c.PasswordCallback = func(ssh.ConnMetadata, []byte) (*ssh.Permissions, error) {
			return nil, errors.New("denied")
		}
	})
	keysOnly := startSSH(t, nil)

	if got := run(t, AcceptsPasswordAuth, password).Status(); got != check.StatusOpen {
		t.Errorf("expected OPEN when password auth is offered, got %s", got)
	}
	if got := run(t, AcceptsPasswordAuth, keysOnly).Status(); got != check.StatusClosed {
		t.Errorf("expected CLOSED for public key only server, got %s", got)
	}
}

func TestIsVersionVisible(t *testing.T) {
	versioned := startSSH(t, func(c *ssh.ServerConfig) {
		c.ServerVersion = "SSH-2.0-OpenSSH_8.2p1 Ubuntu-4ubuntu0.5"
	})
	generic := startSSH(t, func(c *ssh.ServerConfig) {
		c.ServerVersion = "SSH-2.0-Server"
	})

	if got := run(t, IsVersionVisible, versioned).Status(); got != check.StatusOpen {
		t.Errorf("expected OPEN, got %s", got)
	}
	if got := run(t, IsVersionVisible, generic).Status(); got != check.StatusClosed {
		t.Errorf("expected CLOSED, got %s", got)
	}
}

func TestSoftware(t *testing.T) {
	tests := map[string]string{
		"SSH-2.0-OpenSSH_8.2p1 Ubuntu-4ubuntu0.5": "OpenSSH_8.2p1",
		"SSH-1.99-Cisco-1.25":                     "Cisco-1.25",
		"garbage":                                 "",
	}
	for banner, want := range tests {
		if got := software(banner); got != want {
			t.Errorf("software(%q) = %q, want %q", banner, got, want)
		}
	}
}

func TestUnreachableIsUnknown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()

	p := Params{Host: "127.0.0.1", Port: port, Timeout: time.Second}
	for _, c := range []*assert.Check[Params]{IsCBCUsed, IsHMACUsed, AcceptsPasswordAuth, IsVersionVisible} {
		if got := run(t, c, p).Status(); got != check.StatusUnknown {
			t.Errorf("%s: expected UNKNOWN, got %s", c.Meta().Name, got)
		}
	}
}

func TestRegister(t *testing.T) {
	r := assert.NewRegistry()
	Register(r)
	if got := len(r.Names()); got != 4 {
		t.Errorf("expected 4 checks, got %d", got)
	}
}
