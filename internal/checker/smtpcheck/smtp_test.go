package smtpcheck

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/khanhnv2901/seca-assert/internal/application/assert"
	"github.com/khanhnv2901/seca-assert/internal/domain/check"
)

type fakeSMTP struct {
	greeting string
	vrfy     bool
	starttls bool
}

func (f fakeSMTP) serve(conn net.Conn) {
	defer conn.Close()
	w := bufio.NewWriter(conn)
	reply := func(lines ...string) {
		for _, line := range lines {
			_, _ = w.WriteString(line + "\r\n")
		}
		_ = w.Flush()
	}
	reply(f.greeting)

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		cmd, _, _ := strings.Cut(strings.TrimSpace(scanner.Text()), " ")
		switch strings.ToUpper(cmd) {
		case "EHLO":
			if f.starttls {
				reply("250-mail.example.com", "250-STARTTLS", "250 8BITMIME")
			} else {
				reply("250-mail.example.com", "250 8BITMIME")
			}
		case "VRFY":
			if f.vrfy {
				reply("252 Cannot VRFY user, but will accept message")
			} else {
				reply("502 VRFY disallowed")
			}
		case "QUIT":
			reply("221 Bye")
			return
		default:
			reply("500 Unrecognized command")
		}
	}
}

func startSMTP(t *testing.T, server fakeSMTP) Params {
	t.Helper()
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
			go server.serve(conn)
		}
	}()
	return Params{Host: "127.0.0.1", Port: ln.Addr().(*net.TCPAddr).Port, Timeout: 2 * time.Second}
}

func TestHasVRFY(t *testing.T) {
	tests := []struct {
		name string
		vrfy bool
		want check.Status
	}{
		{"enabled", true, check.StatusOpen},
		{"disabled", false, check.StatusClosed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := startSMTP(t, fakeSMTP{greeting: "220 mail.example.com ESMTP", vrfy: tt.vrfy})
			result, err := HasVRFY.Run(context.Background(), VRFYParams{Params: p})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.Status() != tt.want {
				t.Errorf("expected %s, got %s: %s", tt.want, result.Status(), result.Message())
			}
		})
	}
}

func TestIsVersionVisible(t *testing.T) {
	tests := []struct {
		greeting string
		want     check.Status
	}{
		{"220 mail.example.com ESMTP Postfix 3.4.13", check.StatusOpen},
		{"220 mail.example.com ESMTP", check.StatusClosed},
	}
	for _, tt := range tests {
		t.Run(tt.greeting, func(t *testing.T) {
			p := startSMTP(t, fakeSMTP{greeting: tt.greeting})
			result, err := IsVersionVisible.Run(context.Background(), p)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.Status() != tt.want {
				t.Errorf("expected %s, got %s", tt.want, result.Status())
			}
		})
	}
}

func TestHasNoSTARTTLS(t *testing.T) {
	plain := startSMTP(t, fakeSMTP{greeting: "220 ESMTP"})
	secure := startSMTP(t, fakeSMTP{greeting: "220 ESMTP", starttls: true})

	result, err := HasNoSTARTTLS.Run(context.Background(), plain)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status() != check.StatusOpen {
		t.Errorf("expected OPEN without STARTTLS, got %s", result.Status())
	}

	result, err = HasNoSTARTTLS.Run(context.Background(), secure)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status() != check.StatusClosed {
		t.Errorf("expected CLOSED with STARTTLS, got %s", result.Status())
	}
}

func TestUnreachableIsUnknown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()

	result, err := HasVRFY.Run(context.Background(), VRFYParams{Params: Params{Host: "127.0.0.1", Port: port, Timeout: time.Second}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status() != check.StatusUnknown {
		t.Errorf("expected UNKNOWN, got %s", result.Status())
	}
}

func TestRegister(t *testing.T) {
	r := assert.NewRegistry()
	Register(r)
	if got := len(r.Names()); got != 3 {
		t.Errorf("expected 3 checks, got %d", got)
	}
}
