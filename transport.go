package gateclient

import (
	"context"
	"io"
	"net/http"
	"time"
)

// outboundRequest is the method/url/headers/body tuple the admission
// controller hands to a Transport. It is intentionally not *http.Request:
// the core never forces a caller's Transport to be net/http-based.
type outboundRequest struct {
	Method  string
	URL     string
	Headers http.Header
	Body    io.Reader
}

// Transport performs exactly one HTTP exchange per Do call. It must honor
// ctx cancellation and must not itself retry or follow redirects; both are
// the admission controller's responsibility.
type Transport interface {
	Do(ctx context.Context, req outboundRequest) (ResponseView, error)
}

// defaultTransport adapts a *http.Client into a Transport: a context
// deadline is installed only when the caller did not already set one, and
// the response body is read into the ResponseView, up to maxBodyByte
// bytes, and closed before Do returns.
type defaultTransport struct {
	client      *http.Client
	timeout     time.Duration
	maxBodyByte int64
}

// newDefaultTransport builds a Transport backed by client (or a fresh
// *http.Client if nil), applying timeout as the fallback deadline whenever
// a call's context carries none. The client's CheckRedirect is always
// overridden to stop at the first redirect: following redirects is the
// admission controller's job (§6 "does not itself retry or redirect"), so
// net/http must hand back the 3xx response instead of chasing it.
func newDefaultTransport(client *http.Client, timeout time.Duration, maxBodyBytes int64) *defaultTransport {
	if client == nil {
		client = &http.Client{}
	} else {
		shallow := *client
		client = &shallow
	}
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &defaultTransport{client: client, timeout: timeout, maxBodyByte: maxBodyBytes}
}

func (t *defaultTransport) Do(ctx context.Context, req outboundRequest) (ResponseView, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var cancel context.CancelFunc
	if _, ok := ctx.Deadline(); !ok {
		timeout := t.timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, req.Body)
	if err != nil {
		return nil, err
	}
	if req.Headers != nil {
		httpReq.Header = req.Headers
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	return newResponseView(resp, t.maxBodyByte)
}
