package offline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tgienger/shiush/internal/models"
)

// Policy decides whether the network or the cache is consulted first
type Policy string

const (
	PolicyNetworkFirst Policy = "network-first"
	PolicyCacheFirst   Policy = "cache-first"
)

// ParsePolicy maps a config value onto a Policy. Empty means network-first.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyNetworkFirst:
		return PolicyNetworkFirst, nil
	case PolicyCacheFirst:
		return PolicyCacheFirst, nil
	}
	return "", fmt.Errorf("unknown cache strategy %q", s)
}

// SourceHeader reports where a proxied response came from
const SourceHeader = "X-Shiush-Source"

const (
	sourceNetwork = "network"
	sourceCache   = "cache"
	sourceOffline = "offline"
	sourceMissing = "missing"
)

func sameOrigin(u, origin *url.URL) bool {
	if u.Host == "" {
		return true
	}
	return strings.EqualFold(u.Scheme, origin.Scheme) && strings.EqualFold(u.Host, origin.Host)
}

// intercepted reports whether the worker answers req. Non-GET requests go
// straight to the origin.
func intercepted(req *http.Request, origin *url.URL) bool {
	return req.Method == http.MethodGet && sameOrigin(req.URL, origin)
}

func isNavigation(req *http.Request) bool {
	if req.Header.Get("Sec-Fetch-Mode") == "navigate" {
		return true
	}
	return req.Method == http.MethodGet && strings.Contains(req.Header.Get("Accept"), "text/html")
}

// cacheKey identifies a request in the cache by path and query
func cacheKey(u *url.URL) string {
	key := u.EscapedPath()
	if key == "" {
		key = "/"
	}
	if u.RawQuery != "" {
		key += "?" + u.RawQuery
	}
	return key
}

func notFound() *models.CachedResponse {
	return &models.CachedResponse{
		Status: http.StatusNotFound,
		Header: http.Header{"Content-Type": {"text/plain; charset=utf-8"}},
		Body:   []byte("Not found"),
		Type:   models.ResponseBasic,
	}
}

// network forwards req to the origin and records the outcome
func (w *Worker) network(ctx context.Context, req *http.Request) (*models.CachedResponse, error) {
	out, err := forwardRequest(ctx, req, w.resolve(cacheKey(req.URL)))
	if err != nil {
		return nil, err
	}
	resp, err := w.fetcher.Do(out)
	if err != nil {
		w.observe(false)
		return nil, err
	}
	w.observe(true)
	return w.capture(resp)
}

func (w *Worker) store(ctx context.Context, key string, resp *models.CachedResponse) {
	if resp.Status != http.StatusOK || resp.Type != models.ResponseBasic || w.cache == nil {
		return
	}
	if err := w.cache.Put(ctx, key, resp); err != nil {
		w.log.Printf("offline: cache %s: %v", key, err)
	}
}

func (w *Worker) match(ctx context.Context, key string) (*models.CachedResponse, bool) {
	if w.cache == nil || key == "" {
		return nil, false
	}
	resp, ok, err := w.cache.Match(ctx, key)
	if err != nil {
		w.log.Printf("offline: match %s: %v", key, err)
		return nil, false
	}
	return resp, ok
}

// respond answers one intercepted request. It always produces a response.
func (w *Worker) respond(ctx context.Context, req *http.Request) (*models.CachedResponse, string) {
	key := cacheKey(req.URL)
	navigate := isNavigation(req)

	if w.policy == PolicyCacheFirst && !navigate {
		if resp, ok := w.match(ctx, key); ok {
			return resp, sourceCache
		}
		resp, err := w.network(ctx, req)
		if err != nil {
			return notFound(), sourceMissing
		}
		w.store(ctx, key, resp)
		return resp, sourceNetwork
	}

	resp, err := w.network(ctx, req)
	if err == nil {
		w.store(ctx, key, resp)
		return resp, sourceNetwork
	}
	w.log.Printf("offline: network %s: %v", key, err)

	if resp, ok := w.match(ctx, key); ok {
		return resp, sourceCache
	}
	if navigate {
		if w.policy == PolicyCacheFirst {
			if resp, ok := w.match(ctx, w.manifest.ShellPage); ok {
				return resp, sourceOffline
			}
		}
		if resp, ok := w.match(ctx, w.manifest.OfflinePage); ok {
			return resp, sourceOffline
		}
	}
	return notFound(), sourceMissing
}

// forwardRequest copies in onto target, dropping hop-by-hop headers
func forwardRequest(ctx context.Context, in *http.Request, target string) (*http.Request, error) {
	out, err := http.NewRequestWithContext(ctx, in.Method, target, in.Body)
	if err != nil {
		return nil, err
	}
	out.Header = in.Header.Clone()
	for _, h := range []string{"Connection", "Keep-Alive", "Proxy-Connection", "Te", "Trailer", "Transfer-Encoding", "Upgrade"} {
		out.Header.Del(h)
	}
	out.ContentLength = in.ContentLength
	return out, nil
}

func writeResponse(rw http.ResponseWriter, resp *models.CachedResponse, source string) {
	h := rw.Header()
	for k, vs := range resp.Header {
		if k == "Content-Length" || k == "Transfer-Encoding" {
			continue
		}
		h[k] = append([]string(nil), vs...)
	}
	h.Set("Content-Length", strconv.Itoa(len(resp.Body)))
	if source != "" {
		h.Set(SourceHeader, source)
	}
	rw.WriteHeader(resp.Status)
	rw.Write(resp.Body)
}

// passthrough sends an unintercepted request to the origin untouched
func (r *Registration) passthrough(rw http.ResponseWriter, req *http.Request) {
	ref := &url.URL{Path: req.URL.Path, RawPath: req.URL.RawPath, RawQuery: req.URL.RawQuery}
	target := r.cfg.Origin.ResolveReference(ref).String()
	out, err := forwardRequest(req.Context(), req, target)
	if err != nil {
		http.Error(rw, err.Error(), http.StatusBadRequest)
		return
	}
	resp, err := r.fetcher.Do(out)
	if err != nil {
		r.net.Observe(false)
		http.Error(rw, "Bad gateway", http.StatusBadGateway)
		return
	}
	r.net.Observe(true)
	defer resp.Body.Close()

	for k, vs := range resp.Header {
		rw.Header()[k] = append([]string(nil), vs...)
	}
	rw.Header().Set(SourceHeader, sourceNetwork)
	rw.WriteHeader(resp.StatusCode)
	io.Copy(rw, resp.Body)
}

// ServeHTTP intercepts requests for the app shell. Absolute-form requests
// naming another origin are refused, never relayed.
func (r *Registration) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	if !sameOrigin(req.URL, r.cfg.Origin) {
		http.Error(rw, "Cross-origin request refused", http.StatusForbidden)
		return
	}
	w := r.Active()
	if w == nil || !intercepted(req, r.cfg.Origin) {
		r.passthrough(rw, req)
		return
	}
	resp, source := w.respond(req.Context(), req)
	writeResponse(rw, resp, source)
}
