package netprobe

import (
	"bufio"
	"context"
	"errors"
	"net"
	"testing"
	"time"

	sharedErrors "github.com/khanhnv2901/seca-assert/internal/shared/errors"
)

func listen(t *testing.T, handle func(net.Conn)) string {
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
			go func() {
				defer conn.Close()
				handle(conn)
			}()
		}
	}()
	return ln.Addr().String()
}

func TestBanner_Greeting(t *testing.T) {
	addr := listen(t, func(c net.Conn) {
		_, _ = c.Write([]byte("220 mail.example.com ESMTP Postfix 3.4.13\r\n"))
	})
	banner, err := Banner(context.Background(), addr, time.Second, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if banner != "220 mail.example.com ESMTP Postfix 3.4.13" {
		t.Errorf("unexpected banner %q", banner)
	}
	if v := Version(banner); v != "3.4.13" {
		t.Errorf("expected version 3.4.13, got %q", v)
	}
}

func TestBanner_Probe(t *testing.T) {
	addr := listen(t, func(c net.Conn) {
		line, _ := bufio.NewReader(c).ReadString('\n')
		_, _ = c.Write([]byte("echo " + line))
	})
	banner, err := Banner(context.Background(), addr, time.Second, []byte("HELLO\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if banner != "echo HELLO" {
		t.Errorf("unexpected banner %q", banner)
	}
}

func TestBanner_ClosedPortIsConnectionError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	_, err = Banner(context.Background(), addr, time.Second, nil)
	if !errors.Is(sharedErrors.Classify(err), sharedErrors.ErrConnection) {
		t.Errorf("expected connection error, got %v", err)
	}
}

func TestVersion(t *testing.T) {
	tests := map[string]string{
		"SSH-2.0-OpenSSH_8.2p1 Ubuntu-4ubuntu0.5": "2.0",
		"220 (vsFTPd 3.0.3)":                      "3.0.3",
		"220 ProFTPD Server ready":                "",
	}
	for banner, want := range tests {
		if got := Version(banner); got != want {
			t.Errorf("Version(%q) = %q, want %q", banner, got, want)
		}
	}
}
