package gateclient

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHTTPResponse(status int, headers http.Header, body string) *http.Response {
	if headers == nil {
		headers = http.Header{}
	}
	return &http.Response{
		StatusCode: status,
		Header:     headers,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestNewResponseView_ReadsAndClosesBody(t *testing.T) {
	resp := newHTTPResponse(200, nil, "hello")
	view, err := newResponseView(resp, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), view.Body())
	assert.True(t, view.IsOk())
	assert.False(t, view.IsError())
}

func TestResponseView_IsError(t *testing.T) {
	resp := newHTTPResponse(404, nil, "")
	view, err := newResponseView(resp, 0)
	require.NoError(t, err)
	assert.False(t, view.IsOk())
	assert.True(t, view.IsError())
}

func TestResponseView_IsExceedsRateLimit(t *testing.T) {
	resp := newHTTPResponse(http.StatusTooManyRequests, nil, "")
	view, err := newResponseView(resp, 0)
	require.NoError(t, err)
	assert.True(t, view.IsExceedsRateLimit())
}

func TestResponseView_RedirectURL(t *testing.T) {
	h := http.Header{"Location": []string{"https://api.example.com/next"}}
	resp := newHTTPResponse(302, h, "")
	view, err := newResponseView(resp, 0)
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/next", view.RedirectURL())
}

func TestResponseView_RedirectURL_EmptyWhenNotARedirect(t *testing.T) {
	h := http.Header{"Location": []string{"https://api.example.com/next"}}
	resp := newHTTPResponse(200, h, "")
	view, err := newResponseView(resp, 0)
	require.NoError(t, err)
	assert.Empty(t, view.RedirectURL())
}

func TestResponseView_RetryAfterMs_Seconds(t *testing.T) {
	h := http.Header{"Retry-After": []string{"2"}}
	resp := newHTTPResponse(429, h, "")
	view, err := newResponseView(resp, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), view.RetryAfterMs())
}

func TestResponseView_RetryAfterMs_HTTPDate(t *testing.T) {
	when := time.Now().Add(3 * time.Second)
	h := http.Header{"Retry-After": []string{when.UTC().Format(http.TimeFormat)}}
	resp := newHTTPResponse(429, h, "")
	view, err := newResponseView(resp, 0)
	require.NoError(t, err)
	ms := view.RetryAfterMs()
	assert.Greater(t, ms, int64(0))
	assert.LessOrEqual(t, ms, int64(3000))
}

func TestResponseView_RetryAfterMs_Absent(t *testing.T) {
	resp := newHTTPResponse(429, nil, "")
	view, err := newResponseView(resp, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), view.RetryAfterMs())
}

func TestNewResponseView_CapsBodyAtMaxBody(t *testing.T) {
	body := strings.Repeat("a", 100)
	resp := newHTTPResponse(200, nil, body)
	view, err := newResponseView(resp, 10)
	require.NoError(t, err)
	assert.Len(t, view.Body(), 10)
}

func TestResponseView_StatusAndHeaders(t *testing.T) {
	h := http.Header{"X-RateLimit-Group": []string{"orders"}}
	resp := newHTTPResponse(200, h, "")
	view, err := newResponseView(resp, 0)
	require.NoError(t, err)
	assert.Equal(t, 200, view.Status())
	assert.Equal(t, "orders", view.Headers().Get("X-RateLimit-Group"))
}

func TestResponseView_RetryAfterMs_NegativeSecondsIgnored(t *testing.T) {
	h := http.Header{"Retry-After": []string{strconv.Itoa(-5)}}
	resp := newHTTPResponse(429, h, "")
	view, err := newResponseView(resp, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), view.RetryAfterMs())
}
