package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

// Profile selects which transport a request rides on. Trading calls (place,
// cancel, login) get a short timeout so a stuck order surfaces fast;
// reporting calls (history, game lists) get a long one because the exchange
// is slow to assemble them.
type Profile int

const (
	Trading Profile = iota
	Reporting
)

const (
	DefaultTradingTimeout   = 10 * time.Second
	DefaultReportingTimeout = 60 * time.Second

	// The exchange rejects unknown agents, so we present a browser.
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
)

// RequestError carries the operation a failed request belonged to, so
// callers can tell a failed place from a failed cancel without string
// matching.
type RequestError struct {
	Op     string
	Status int
	Body   string
	cause  error
}

func (e *RequestError) Error() string {
	if e.cause != nil {
		return "request " + e.Op + " failed: " + e.cause.Error()
	}
	return "request " + e.Op + " failed: status " + http.StatusText(e.Status) + ": " + e.Body
}

func (e *RequestError) Unwrap() error {
	return e.cause
}

// Client wraps two resty transports over the same base URL. There is no
// retry at this layer: a timed-out place may still have reached the book,
// and only the caller knows whether re-sending is safe.
type Client struct {
	trading   *resty.Client
	reporting *resty.Client
}

func NewClient(host string, tradingTimeout, reportingTimeout time.Duration) *Client {
	host = strings.TrimSuffix(host, "/")
	if tradingTimeout <= 0 {
		tradingTimeout = DefaultTradingTimeout
	}
	if reportingTimeout <= 0 {
		reportingTimeout = DefaultReportingTimeout
	}

	// resty 会自动从环境变量读取代理配置（HTTP_PROXY, HTTPS_PROXY）
	build := func(timeout time.Duration) *resty.Client {
		return resty.New().
			SetBaseURL(host).
			SetTimeout(timeout).
			SetRetryCount(0)
	}

	return &Client{
		trading:   build(tradingTimeout),
		reporting: build(reportingTimeout),
	}
}

func (c *Client) profile(p Profile) *resty.Client {
	if p == Reporting {
		return c.reporting
	}
	return c.trading
}

// 仅设置本次请求的默认 Header（不要再改 client 级 Header）
func (c *Client) newRequest(ctx context.Context, p Profile, token string) *resty.Request {
	r := c.profile(p).R()
	if ctx != nil {
		r.SetContext(ctx)
	}
	r.SetHeader("Accept", "application/json")
	r.SetHeader("Cache-Control", "max-age=0")
	r.SetHeader("User-Agent", userAgent)
	if token != "" {
		r.SetHeader("Authorization", token)
	}
	return r
}

// Get runs a GET with optional query params. out receives the decoded JSON
// body on 2xx.
func (c *Client) Get(ctx context.Context, p Profile, op, path string, query map[string]string, token string, out any) error {
	r := c.newRequest(ctx, p, token)
	if len(query) > 0 {
		r.SetQueryParams(query)
	}
	if out != nil {
		r.SetResult(out)
	}
	resp, err := r.Get(path)
	return wrap(op, resp, err)
}

// Post runs a POST with a JSON body. The body is expected to embed the
// session token itself where the endpoint wants one.
func (c *Client) Post(ctx context.Context, p Profile, op, path string, body any, token string, out any) error {
	r := c.newRequest(ctx, p, token)
	r.SetHeader("Content-Type", "application/json")
	if body != nil {
		r.SetBody(body)
	}
	if out != nil {
		r.SetResult(out)
	}
	resp, err := r.Post(path)
	return wrap(op, resp, err)
}

func wrap(op string, resp *resty.Response, err error) error {
	if err != nil {
		return errors.WithStack(&RequestError{Op: op, cause: err})
	}
	if !resp.IsSuccess() {
		return errors.WithStack(&RequestError{
			Op:     op,
			Status: resp.StatusCode(),
			Body:   strings.TrimSpace(string(resp.Body())),
		})
	}
	return nil
}
