package http

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractClientIP_RemoteAddrOnly(t *testing.T) {
	req := httptest.NewRequest("POST", "/auth/login", nil)
	req.RemoteAddr = "203.0.113.7:54321"

	ip := ExtractClientIP(req, &IPConfig{})

	assert.Equal(t, "203.0.113.7", ip)
}

func TestExtractClientIP_SpoofedHeaderIgnoredWithoutTrustedProxy(t *testing.T) {
	req := httptest.NewRequest("POST", "/auth/login", nil)
	req.RemoteAddr = "203.0.113.7:54321"
	req.Header.Set("X-Forwarded-For", "198.51.100.4")
	req.Header.Set("X-Real-IP", "198.51.100.4")

	ip := ExtractClientIP(req, &IPConfig{})

	// A client must not be able to dodge the IP lockout with headers.
	assert.Equal(t, "203.0.113.7", ip)
}

func TestExtractClientIP_ForwardedForFromTrustedProxy(t *testing.T) {
	req := httptest.NewRequest("POST", "/auth/login", nil)
	req.RemoteAddr = "10.0.0.5:54321"
	req.Header.Set("X-Forwarded-For", "198.51.100.4, 10.0.0.5")

	ip := ExtractClientIP(req, &IPConfig{TrustedProxies: []string{"10.0.0.0/8"}})

	assert.Equal(t, "198.51.100.4", ip)
}

func TestExtractClientIP_RealIPFromTrustedProxy(t *testing.T) {
	req := httptest.NewRequest("POST", "/auth/login", nil)
	req.RemoteAddr = "10.0.0.5:54321"
	req.Header.Set("X-Real-IP", "198.51.100.4")

	ip := ExtractClientIP(req, &IPConfig{TrustedProxies: []string{"10.0.0.0/8"}})

	assert.Equal(t, "198.51.100.4", ip)
}

func TestExtractClientIP_InvalidHeaderFallsBack(t *testing.T) {
	req := httptest.NewRequest("POST", "/auth/login", nil)
	req.RemoteAddr = "10.0.0.5:54321"
	req.Header.Set("X-Forwarded-For", "not-an-ip")

	ip := ExtractClientIP(req, &IPConfig{TrustedProxies: []string{"10.0.0.0/8"}})

	assert.Equal(t, "10.0.0.5", ip)
}
