package target

import "testing"

func TestParse(t *testing.T) {
	testCases := []struct {
		name   string
		input  string
		host   string
		port   string
		scheme string
	}{
		{name: "Plain domain", input: "example.com", host: "example.com", scheme: "http"},
		{name: "HTTPS URL", input: "https://example.com", host: "example.com", scheme: "https"},
		{name: "URL with port and path", input: "https://example.com:8080/api/v1", host: "example.com", port: "8080", scheme: "https"},
		{name: "Host with port", input: "example.com:2121", host: "example.com", port: "2121", scheme: "http"},
		{name: "Subdomain", input: "api.example.com", host: "api.example.com", scheme: "http"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			info := Parse(tc.input)
			if info.Host != tc.host {
				t.Errorf("Expected host '%s', got '%s'", tc.host, info.Host)
			}
			if info.Port != tc.port {
				t.Errorf("Expected port '%s', got '%s'", tc.port, info.Port)
			}
			if info.Scheme != tc.scheme {
				t.Errorf("Expected scheme '%s', got '%s'", tc.scheme, info.Scheme)
			}
		})
	}
}

func TestAddress(t *testing.T) {
	testCases := []struct {
		target   string
		port     int
		expected string
	}{
		{target: "ftp.example.com", port: 0, expected: "ftp.example.com:21"},
		{target: "ftp.example.com", port: 2121, expected: "ftp.example.com:2121"},
		{target: "ftp.example.com:990", port: 0, expected: "ftp.example.com:990"},
		{target: "127.0.0.1", port: 0, expected: "127.0.0.1:21"},
	}

	for _, tc := range testCases {
		if got := Address(tc.target, tc.port, "21"); got != tc.expected {
			t.Errorf("Address(%q, %d): expected %q, got %q", tc.target, tc.port, tc.expected, got)
		}
	}
}
