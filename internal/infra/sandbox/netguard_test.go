package sandbox

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func netPolicy(t *testing.T) *Policy {
	t.Helper()
	return testPolicy(t, t.TempDir())
}

func stubResolver(t *testing.T, addrs map[string][]string) {
	t.Helper()
	prev := lookupIP
	lookupIP = func(_ context.Context, host string) ([]net.IPAddr, error) {
		var out []net.IPAddr
		for _, raw := range addrs[host] {
			out = append(out, net.IPAddr{IP: net.ParseIP(raw)})
		}
		return out, nil
	}
	t.Cleanup(func() { lookupIP = prev })
}

func TestValidateURLBlockedSchemes(t *testing.T) {
	policy := netPolicy(t)
	for _, raw := range []string{
		"ftp://example.com/file",
		"file:///etc/passwd",
		"gopher://example.com",
		"ssh://example.com",
	} {
		_, err := policy.ValidateURL(context.Background(), raw)
		require.Error(t, err, raw)
		assert.True(t, IsViolation(err), raw)
	}
}

func TestValidateURLBlockedLiteralAddresses(t *testing.T) {
	policy := netPolicy(t)
	for _, raw := range []string{
		"http://127.0.0.1/admin",
		"http://127.0.0.1:8080/",
		"http://0.0.0.0/",
		"http://10.1.2.3/internal",
		"http://172.16.0.9/",
		"http://192.168.1.1/router",
		"http://169.254.169.254/latest/meta-data/",
		"http://100.64.0.1/",
		"http://[::1]/",
		"http://[fe80::1]/",
		"http://[fd00::1]/",
	} {
		_, err := policy.ValidateURL(context.Background(), raw)
		require.Error(t, err, raw)
		assert.True(t, IsViolation(err), raw)
	}
}

func TestValidateURLLocalhostNames(t *testing.T) {
	policy := netPolicy(t)
	for _, raw := range []string{
		"http://localhost/",
		"http://localhost:9200/",
		"https://api.localhost/",
	} {
		_, err := policy.ValidateURL(context.Background(), raw)
		require.Error(t, err, raw)
		assert.True(t, IsViolation(err), raw)
	}
}

func TestValidateURLMetadataHostnames(t *testing.T) {
	policy := netPolicy(t)
	_, err := policy.ValidateURL(context.Background(), "http://metadata.google.internal/computeMetadata/v1/")
	require.Error(t, err)
	assert.True(t, IsViolation(err))
}

func TestValidateURLResolvedPrivateAddress(t *testing.T) {
	policy := netPolicy(t)
	stubResolver(t, map[string][]string{
		"internal.example.com": {"10.0.0.5"},
		"tricky.example.com":   {"93.184.216.34", "192.168.0.10"},
		"clean.example.com":    {"93.184.216.34"},
	})

	_, err := policy.ValidateURL(context.Background(), "https://internal.example.com/")
	require.Error(t, err)
	assert.True(t, IsViolation(err))

	// One private address among several public ones still fails.
	_, err = policy.ValidateURL(context.Background(), "https://tricky.example.com/")
	require.Error(t, err)
	assert.True(t, IsViolation(err))

	parsed, err := policy.ValidateURL(context.Background(), "https://clean.example.com/page")
	require.NoError(t, err)
	assert.Equal(t, "clean.example.com", parsed.Hostname())
}

func TestValidateURLMalformed(t *testing.T) {
	policy := netPolicy(t)
	_, err := policy.ValidateURL(context.Background(), "http://")
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}
