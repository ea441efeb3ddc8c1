package gateclient

import (
	"io"
	"net/http"
	"strconv"
	"time"
)

// ResponseView is the read-only facade Client and GroupLimits consume for
// every inbound response, regardless of which Transport produced it.
type ResponseView interface {
	Status() int
	Headers() http.Header
	Body() []byte
	RedirectURL() string
	RetryAfterMs() int64
	IsOk() bool
	IsError() bool
	IsExceedsRateLimit() bool
}

// httpResponseView is the concrete ResponseView built from a *http.Response.
// The body is read eagerly and the underlying response closed, so no live
// connection leaks past the point a caller can still reach it.
type httpResponseView struct {
	status  int
	headers http.Header
	body    []byte
}

// newResponseView drains and closes resp.Body, capped at maxBody bytes.
// Draining here (rather than deferring to the caller) keeps the
// connection-reuse contract of net/http intact even when a caller never
// reads ResponseView.Body().
func newResponseView(resp *http.Response, maxBody int64) (*httpResponseView, error) {
	defer resp.Body.Close()
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, err
	}
	return &httpResponseView{
		status:  resp.StatusCode,
		headers: resp.Header,
		body:    body,
	}, nil
}

func (v *httpResponseView) Status() int {
	return v.status
}

func (v *httpResponseView) Headers() http.Header {
	return v.headers
}

func (v *httpResponseView) Body() []byte {
	return v.body
}

// RedirectURL returns the Location header verbatim, or "" if absent or if
// the status is not a redirect.
func (v *httpResponseView) RedirectURL() string {
	if v.status < 300 || v.status > 399 {
		return ""
	}
	return v.headers.Get("Location")
}

// RetryAfterMs parses Retry-After as either an integer count of seconds or
// an HTTP-date, returning 0 if the header is absent or unparseable.
func (v *httpResponseView) RetryAfterMs() int64 {
	raw := v.headers.Get("Retry-After")
	if raw == "" {
		return 0
	}
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if secs < 0 {
			return 0
		}
		return secs * 1000
	}
	if when, err := http.ParseTime(raw); err == nil {
		d := time.Until(when)
		if d < 0 {
			return 0
		}
		return d.Milliseconds()
	}
	return 0
}

func (v *httpResponseView) IsOk() bool {
	return v.status >= 200 && v.status <= 299
}

func (v *httpResponseView) IsError() bool {
	return v.status >= 400
}

func (v *httpResponseView) IsExceedsRateLimit() bool {
	return v.status == http.StatusTooManyRequests
}
