package utils

import (
	"net/http"
	"time"
)

type ClientOption func(*clientOptions)

type clientOptions struct {
	userAgent string
	transport http.RoundTripper
}

// WithUserAgent 给没有 User-Agent 的请求补上默认值
func WithUserAgent(ua string) ClientOption {
	return func(o *clientOptions) { o.userAgent = ua }
}

// WithTransport 替换底层 transport，测试用
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(o *clientOptions) { o.transport = rt }
}

// NewHTTPClient 出站请求共用的 client：抓取、翻译、搜索
func NewHTTPClient(timeout time.Duration, opts ...ClientOption) *http.Client {
	o := clientOptions{
		transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(&o)
	}

	rt := o.transport
	if o.userAgent != "" {
		rt = &uaTransport{base: rt, ua: o.userAgent}
	}
	return &http.Client{Timeout: timeout, Transport: rt}
}

type uaTransport struct {
	base http.RoundTripper
	ua   string
}

func (t *uaTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return t.base.RoundTrip(req)
	}
	// RoundTripper 不能修改原请求
	r := req.Clone(req.Context())
	r.Header.Set("User-Agent", t.ua)
	return t.base.RoundTrip(r)
}
