// Package siteclient wraps the scraper and HTTP transport into a typed API
// for the download site: login, search, gallery/favorite listing and image
// fetch/transcode. Grounded on the teacher's internal/api.Client retry loop
// and internal/api.LoggingTransport, generalized into a reusable
// http.RoundTripper chain per SPEC_FULL.md §4.1.
package siteclient

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/httputil"
	"os"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"wnacg-downloader/internal/apperrors"
)

const baseURL = "https://www.wnacg01.cc"

// retryTransport retries on transport errors, HTTP 429 and 5xx responses.
// The API and image clients use different parameters: the API transport
// caps total sleep at a fixed budget (so a hung mirror fails fast), the
// image transport retries a fixed number of times with no such cap since
// large images legitimately take a while.
type retryTransport struct {
	next          http.RoundTripper
	maxAttempts   int
	baseDelay     time.Duration
	maxTotalSleep time.Duration // 0 means unbounded
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var reqBody []byte
	if req.Body != nil {
		b, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: reading request body: %s", apperrors.ErrNetwork, err)
		}
		req.Body.Close()
		reqBody = b
	}

	var lastErr error
	var totalSlept time.Duration

	for attempt := 0; attempt < t.maxAttempts; attempt++ {
		if reqBody != nil {
			req.Body = io.NopCloser(bytes.NewReader(reqBody))
		}

		resp, err := t.next.RoundTrip(req)
		if err != nil {
			lastErr = fmt.Errorf("%w: %s", apperrors.ErrNetwork, err)
		} else if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			lastErr = apperrors.ErrRateLimited
		} else if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("%w: status %d", apperrors.ErrProtocol, resp.StatusCode)
		} else {
			return resp, nil
		}

		if attempt == t.maxAttempts-1 {
			break
		}

		delay := t.baseDelay * time.Duration(1<<uint(attempt))
		delay += time.Duration(rand.Int63n(int64(t.baseDelay)))
		if t.maxTotalSleep > 0 {
			remaining := t.maxTotalSleep - totalSlept
			if remaining <= 0 {
				break
			}
			if delay > remaining {
				delay = remaining
			}
		}
		log.WithError(lastErr).Debugf("siteclient: retrying %s %s (attempt %d/%d) after %s", req.Method, req.URL, attempt+1, t.maxAttempts, delay)
		time.Sleep(delay)
		totalSlept += delay
	}

	return nil, lastErr
}

// headerTransport attaches the fixed Referer header to every outgoing
// request. The session Cookie, when one applies, is set per-request by the
// SiteClient methods that need it (Login has none yet; UserProfile and
// Favorites are handed one explicitly), matching the original client's
// per-request cookie header rather than baking one cookie into the
// transport for the client's whole lifetime.
type headerTransport struct {
	next http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if req.Header.Get("Referer") == "" {
		req.Header.Set("Referer", baseURL+"/")
	}
	return t.next.RoundTrip(req)
}

// LoggingTransport dumps request/response pairs to a buffered log file,
// adapted near-verbatim from the teacher's internal/api.LoggingTransport:
// response bodies are only logged for JSON content types, everything else
// gets headers only.
type LoggingTransport struct {
	next    http.RoundTripper
	logFile *os.File
	mu      sync.Mutex
	writer  *bufio.Writer
}

// NewLoggingTransport opens logPath for appending and wraps next.
func NewLoggingTransport(next http.RoundTripper, logPath string) (*LoggingTransport, error) {
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("%w: opening log file %s: %s", apperrors.ErrIO, logPath, err)
	}
	if next == nil {
		next = http.DefaultTransport
	}
	return &LoggingTransport{next: next, logFile: f, writer: bufio.NewWriter(f)}, nil
}

func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	start := time.Now()
	if dump, err := httputil.DumpRequestOut(req, true); err == nil {
		t.writeLog(fmt.Sprintf("--- Request (%s) ---\n%s", start.Format(time.RFC3339), dump))
	}

	resp, err := t.next.RoundTrip(req)
	duration := time.Since(start)

	if err != nil {
		t.writeLog(fmt.Sprintf("--- Response Error (duration %s) ---\n%s", duration, err))
		t.writer.Flush()
		return resp, err
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/json") {
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr == nil {
			resp.Body = io.NopCloser(bytes.NewReader(body))
			headerDump, _ := httputil.DumpResponse(resp, false)
			t.writeLog(fmt.Sprintf("--- Response (duration %s) ---\n%s--- Body ---\n%s", duration, headerDump, body))
		}
	} else {
		headerDump, _ := httputil.DumpResponse(resp, false)
		t.writeLog(fmt.Sprintf("--- Response Headers (duration %s, type %s) ---\n%s(body not logged)", duration, contentType, headerDump))
	}

	t.writer.Flush()
	return resp, nil
}

func (t *LoggingTransport) writeLog(s string) {
	if _, err := t.writer.WriteString(s + "\n\n"); err != nil {
		fmt.Fprintf(os.Stderr, "siteclient: error writing api log: %v\n", err)
	}
}

// Close flushes and closes the log file.
func (t *LoggingTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.writer.Flush(); err != nil {
		return err
	}
	return t.logFile.Close()
}

// NewAPIClient builds the client used for login/search/gallery/favorites
// requests: 3s timeout, redirects disabled (so a logged-out redirect
// surfaces as a non-200 instead of silently following), backoff capped at
// 5s total sleep. logPath enables request/response dumping when non-empty.
func NewAPIClient(logPath string) (*http.Client, error) {
	var rt http.RoundTripper = http.DefaultTransport
	if logPath != "" {
		lt, err := NewLoggingTransport(rt, logPath)
		if err != nil {
			return nil, err
		}
		rt = lt
	}
	rt = &retryTransport{next: rt, maxAttempts: 4, baseDelay: time.Second, maxTotalSleep: 5 * time.Second}
	rt = &headerTransport{next: rt}

	return &http.Client{
		Timeout:   3 * time.Second,
		Transport: rt,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}, nil
}

// NewImageClient builds the client used for image downloads: an initial
// attempt plus up to 3 retries (4 total) with default backoff, no
// per-request timeout so large images are not killed mid-transfer.
func NewImageClient(logPath string) (*http.Client, error) {
	var rt http.RoundTripper = http.DefaultTransport
	if logPath != "" {
		lt, err := NewLoggingTransport(rt, logPath)
		if err != nil {
			return nil, err
		}
		rt = lt
	}
	rt = &retryTransport{next: rt, maxAttempts: 4, baseDelay: time.Second}
	rt = &headerTransport{next: rt}

	return &http.Client{Transport: rt}, nil
}
