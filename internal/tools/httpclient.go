// Package tools holds the built-in tools agents can call: web search and
// scraping, weather, exchange rates, clocks, memory and a few small text
// utilities.
package tools

import (
	"compress/gzip"
	"fmt"
	"io"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/soyeahso/agentdesk/internal/config"
	"github.com/soyeahso/agentdesk/internal/logging"
)

// maxBody caps how much of a response a tool reads.
const maxBody = 4 << 20

// NewHTTPClient returns the retrying client shared by the HTTP tools.
func NewHTTPClient(cfg config.ToolsConfig, log *logging.Logger) *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = cfg.HTTPRetries
	c.RetryWaitMin = 500 * time.Millisecond
	c.RetryWaitMax = 5 * time.Second
	timeout := cfg.HTTPTimeoutSecs
	if timeout <= 0 {
		timeout = 30
	}
	c.HTTPClient.Timeout = time.Duration(timeout) * time.Second
	c.Logger = leveledLogger{log: log.Sub("http")}
	// Return the last response instead of a generic give-up error so
	// callers can report the status.
	c.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return c
}

// leveledLogger routes retryablehttp's logging into zerolog.
type leveledLogger struct {
	log *logging.Logger
}

func fields(kv []interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		m[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return m
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.log.Error().Fields(fields(kv)).Msg(msg) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.log.Warn().Fields(fields(kv)).Msg(msg) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.log.Debug().Fields(fields(kv)).Msg(msg) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.log.Trace().Fields(fields(kv)).Msg(msg) }

// StatusError is a non-2xx reply.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Body)
}

// do sends req and returns the body of a 2xx reply.
func do(c *retryablehttp.Client, req *retryablehttp.Request) ([]byte, error) {
	resp, err := c.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var r io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}
		defer gz.Close()
		r = gz
	}
	body, err := io.ReadAll(io.LimitReader(r, maxBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
