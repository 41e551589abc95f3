package gateway

import (
	"testing"
	"time"

	"github.com/soyeahso/agentdesk/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestSafeEqual(t *testing.T) {
	assert.True(t, safeEqual("secret", "secret"))
	assert.True(t, safeEqual("", ""))
	assert.False(t, safeEqual("secret", "wrong"))
	assert.False(t, safeEqual("short", "longer-string"))
	assert.False(t, safeEqual("secret", ""))
}

func TestResolveAuth(t *testing.T) {
	t.Setenv("AGENTDESK_GATEWAY_TOKEN", "")
	t.Setenv("AGENTDESK_GATEWAY_PASSWORD", "")

	a := ResolveAuth(config.GatewayAuth{Token: "cfg-token"})
	assert.Equal(t, ResolvedAuth{Mode: AuthToken, Token: "cfg-token"}, a)

	a = ResolveAuth(config.GatewayAuth{Password: "pw"})
	assert.Equal(t, AuthPassword, a.Mode)

	a = ResolveAuth(config.GatewayAuth{Mode: AuthNone})
	assert.Equal(t, AuthNone, a.Mode)
}

func TestResolveAuthFromEnv(t *testing.T) {
	t.Setenv("AGENTDESK_GATEWAY_TOKEN", "env-token")
	t.Setenv("AGENTDESK_GATEWAY_PASSWORD", "")

	a := ResolveAuth(config.GatewayAuth{})
	assert.Equal(t, AuthToken, a.Mode)
	assert.Equal(t, "env-token", a.Token)

	a = ResolveAuth(config.GatewayAuth{Token: "cfg-token"})
	assert.Equal(t, "cfg-token", a.Token, "config wins over env")
}

func TestAuthorize(t *testing.T) {
	token := ResolvedAuth{Mode: AuthToken, Token: "tok"}
	password := ResolvedAuth{Mode: AuthPassword, Password: "pw"}

	tests := []struct {
		name   string
		server ResolvedAuth
		client *ConnectAuth
		want   AuthResult
	}{
		{"none needs nothing", ResolvedAuth{Mode: AuthNone}, nil, AuthResult{OK: true, Method: AuthNone}},
		{"no credentials", token, nil, AuthResult{Reason: "no credentials provided"}},
		{"token ok", token, &ConnectAuth{Token: "tok"}, AuthResult{OK: true, Method: AuthToken}},
		{"token missing", token, &ConnectAuth{}, AuthResult{Reason: "token required"}},
		{"token wrong", token, &ConnectAuth{Token: "nope"}, AuthResult{Reason: "token_mismatch"}},
		{"server token unset", ResolvedAuth{Mode: AuthToken}, &ConnectAuth{Token: "x"}, AuthResult{Reason: "server token not configured"}},
		{"password ok", password, &ConnectAuth{Password: "pw"}, AuthResult{OK: true, Method: AuthPassword}},
		{"password wrong", password, &ConnectAuth{Password: "x"}, AuthResult{Reason: "password_mismatch"}},
		{"password missing", password, &ConnectAuth{Token: "tok"}, AuthResult{Reason: "password required"}},
		{"unknown mode", ResolvedAuth{Mode: "oauth"}, &ConnectAuth{}, AuthResult{Reason: "unknown auth mode: oauth"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Authorize(tt.server, tt.client))
		})
	}
}

func TestAuthLimiter(t *testing.T) {
	l := newAuthLimiter()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	for range authRateMaxFails - 1 {
		l.recordFailure("10.0.0.1:5000")
	}
	assert.True(t, l.allow("10.0.0.1:6000"))
	l.recordFailure("10.0.0.1:7000")
	assert.False(t, l.allow("10.0.0.1:8000"), "port does not matter")
	assert.True(t, l.allow("10.0.0.2:5000"))

	now = now.Add(authRateWindow + time.Second)
	assert.True(t, l.allow("10.0.0.1:5000"))
	assert.Empty(t, l.failures)
}

func TestAuthLimiterCapsTrackedHosts(t *testing.T) {
	l := newAuthLimiter()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	l.now = func() time.Time { return base.Add(time.Duration(tick) * time.Millisecond) }

	for i := range authRateMaxIPs {
		tick = i
		l.recordFailure(time.Duration(i).String())
	}
	tick++
	l.recordFailure("newcomer")

	assert.Len(t, l.failures, authRateMaxIPs)
	assert.Contains(t, l.failures, "newcomer")
	assert.NotContains(t, l.failures, time.Duration(0).String(), "oldest evicted")
}
