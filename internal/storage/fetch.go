package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"
)

// ErrPrivateAddress is returned when a download would connect to a loopback,
// private, link-local or otherwise non-public address.
var ErrPrivateAddress = errors.New("destination address is not public")

// carrier-grade NAT range, not covered by net.IP.IsPrivate.
var sharedAddressSpace = &net.IPNet{IP: net.IPv4(100, 64, 0, 0), Mask: net.CIDRMask(10, 32)}

// Fetcher downloads a remote file (a provider result) so it can be re-hosted.
type Fetcher struct {
	Client   *http.Client
	MaxBytes int64
}

// FetchOption customizes NewFetcher.
type FetchOption func(*fetchOptions)

type fetchOptions struct {
	allowPrivate bool
}

// AllowPrivateNetworks lets the fetcher reach non-public addresses. Only for
// tests and trusted deployments.
func AllowPrivateNetworks() FetchOption {
	return func(o *fetchOptions) { o.allowPrivate = true }
}

// NewFetcher returns a fetcher with a bounded timeout and size. Every
// connection, redirects included, is checked after DNS resolution and refused
// unless the address is public.
func NewFetcher(timeout time.Duration, maxBytes int64, opts ...FetchOption) *Fetcher {
	var o fetchOptions
	for _, opt := range opts {
		opt(&o)
	}

	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	if !o.allowPrivate {
		dialer.Control = publicOnly
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = dialer.DialContext
	// A proxy would be the only address checked.
	transport.Proxy = nil

	return &Fetcher{
		Client:   &http.Client{Timeout: timeout, Transport: transport},
		MaxBytes: maxBytes,
	}
}

func publicOnly(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip := net.ParseIP(host)
	if ip == nil || !IsPublicIP(ip) {
		return fmt.Errorf("%w: %s", ErrPrivateAddress, host)
	}
	return nil
}

// IsPublicIP reports whether ip is a globally routable unicast address.
func IsPublicIP(ip net.IP) bool {
	switch {
	case ip.IsLoopback(), ip.IsPrivate(), ip.IsUnspecified(),
		ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast(),
		ip.IsInterfaceLocalMulticast(), ip.IsMulticast():
		return false
	}
	if v4 := ip.To4(); v4 != nil {
		return !sharedAddressSpace.Contains(v4) && !v4.Equal(net.IPv4bcast)
	}
	return true
}

// Fetch downloads url and returns its body and content type.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("invalid source url: %w", err)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("download %s: unexpected status %d", url, resp.StatusCode)
	}

	limit := f.MaxBytes
	if limit <= 0 {
		limit = 50 << 20
	}
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, "", fmt.Errorf("download %s: %w", url, err)
	}
	if n > limit {
		return nil, "", fmt.Errorf("download %s: file exceeds %d bytes", url, limit)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(buf.Bytes())
	}
	return buf.Bytes(), contentType, nil
}
