package gateway

import (
	"crypto/subtle"
	"net"
	"os"
	"sync"
	"time"

	"github.com/soyeahso/agentdesk/internal/config"
)

// Auth modes.
const (
	AuthNone     = "none"
	AuthToken    = "token"
	AuthPassword = "password"
)

// AuthResult is the outcome of a connect attempt.
type AuthResult struct {
	OK     bool   `json:"ok"`
	Method string `json:"method,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// ResolvedAuth is the server's effective credentials.
type ResolvedAuth struct {
	Mode     string
	Token    string
	Password string
}

// ResolveAuth fills credentials missing from cfg from the environment. An
// empty mode picks password when one is known, else token.
func ResolveAuth(cfg config.GatewayAuth) ResolvedAuth {
	a := ResolvedAuth{Mode: cfg.Mode, Token: cfg.Token, Password: cfg.Password}
	if a.Token == "" {
		a.Token = os.Getenv("AGENTDESK_GATEWAY_TOKEN")
	}
	if a.Password == "" {
		a.Password = os.Getenv("AGENTDESK_GATEWAY_PASSWORD")
	}
	if a.Mode == "" {
		if a.Password != "" {
			a.Mode = AuthPassword
		} else {
			a.Mode = AuthToken
		}
	}
	return a
}

// Authorize checks client credentials against the server's.
func Authorize(server ResolvedAuth, client *ConnectAuth) AuthResult {
	if server.Mode == AuthNone {
		return AuthResult{OK: true, Method: AuthNone}
	}
	if client == nil {
		return AuthResult{Reason: "no credentials provided"}
	}

	switch server.Mode {
	case AuthToken:
		switch {
		case server.Token == "":
			return AuthResult{Reason: "server token not configured"}
		case client.Token == "":
			return AuthResult{Reason: "token required"}
		case !safeEqual(client.Token, server.Token):
			return AuthResult{Reason: "token_mismatch"}
		}
		return AuthResult{OK: true, Method: AuthToken}
	case AuthPassword:
		switch {
		case server.Password == "":
			return AuthResult{Reason: "server password not configured"}
		case client.Password == "":
			return AuthResult{Reason: "password required"}
		case !safeEqual(client.Password, server.Password):
			return AuthResult{Reason: "password_mismatch"}
		}
		return AuthResult{OK: true, Method: AuthPassword}
	}
	return AuthResult{Reason: "unknown auth mode: " + server.Mode}
}

// safeEqual compares in constant time without leaking the secret's length.
func safeEqual(a, b string) bool {
	lenMatch := subtle.ConstantTimeEq(int32(len(a)), int32(len(b)))
	cmp := subtle.ConstantTimeCompare([]byte(a), []byte(b))
	return subtle.ConstantTimeSelect(lenMatch, cmp, 0) == 1
}

const (
	authRateWindow   = 5 * time.Minute
	authRateMaxFails = 10
	authRateMaxIPs   = 10000
)

// authLimiter counts failed handshakes per remote host inside a sliding
// window.
type authLimiter struct {
	mu       sync.Mutex
	failures map[string][]time.Time
	now      func() time.Time
}

func newAuthLimiter() *authLimiter {
	return &authLimiter{failures: make(map[string][]time.Time), now: time.Now}
}

func remoteHost(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil && host != "" {
		return host
	}
	return addr
}

// recent drops expired entries for host and returns what is left. Callers
// hold mu.
func (l *authLimiter) recent(host string) []time.Time {
	cutoff := l.now().Add(-authRateWindow)
	kept := l.failures[host][:0]
	for _, t := range l.failures[host] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		delete(l.failures, host)
		return nil
	}
	l.failures[host] = kept
	return kept
}

func (l *authLimiter) allow(addr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.recent(remoteHost(addr))) < authRateMaxFails
}

func (l *authLimiter) recordFailure(addr string) {
	host := remoteHost(addr)
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, tracked := l.failures[host]; !tracked && len(l.failures) >= authRateMaxIPs {
		for h := range l.failures {
			l.recent(h)
		}
		if len(l.failures) >= authRateMaxIPs {
			l.evictOldest()
		}
	}
	l.failures[host] = append(l.failures[host], l.now())
}

func (l *authLimiter) evictOldest() {
	var (
		oldest string
		at     time.Time
	)
	for h, times := range l.failures {
		if oldest == "" || times[0].Before(at) {
			oldest, at = h, times[0]
		}
	}
	delete(l.failures, oldest)
}
