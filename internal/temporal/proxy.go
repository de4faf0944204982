package temporal

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"launchpad/internal/errdefs"
)

type contextDialer func(ctx context.Context, address string) (net.Conn, error)

// proxyDialer tunnels gRPC connections through an HTTP CONNECT proxy.
func proxyDialer(rawURL string) (contextDialer, error) {
	proxyURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, errdefs.Config("invalid proxy url %q: %v", rawURL, err)
	}
	if proxyURL.Host == "" {
		proxyURL, err = url.Parse("http://" + rawURL)
		if err != nil || proxyURL.Host == "" {
			return nil, errdefs.Config("invalid proxy url %q", rawURL)
		}
	}
	if proxyURL.Scheme != "" && proxyURL.Scheme != "http" {
		return nil, errdefs.Config("unsupported proxy scheme %q", proxyURL.Scheme)
	}
	return func(ctx context.Context, address string) (net.Conn, error) {
		return dialThroughProxy(ctx, proxyURL, address)
	}, nil
}

func dialThroughProxy(ctx context.Context, proxyURL *url.URL, address string) (net.Conn, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", proxyURL.Host)
	if err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	request := &http.Request{
		Method: http.MethodConnect,
		URL:    &url.URL{Opaque: address},
		Host:   address,
		Header: http.Header{},
	}
	if user := proxyURL.User; user != nil {
		password, _ := user.Password()
		credentials := base64.StdEncoding.EncodeToString([]byte(user.Username() + ":" + password))
		request.Header.Set("Proxy-Authorization", "Basic "+credentials)
	}
	if err := request.Write(conn); err != nil {
		_ = conn.Close()
		return nil, err
	}

	reader := bufio.NewReader(conn)
	response, err := http.ReadResponse(reader, request)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if response.StatusCode != http.StatusOK {
		_ = conn.Close()
		return nil, fmt.Errorf("proxy connect to %s: %s", address, response.Status)
	}
	_ = conn.SetDeadline(noDeadline)
	if reader.Buffered() > 0 {
		return &bufferedConn{Conn: conn, reader: reader}, nil
	}
	return conn, nil
}

var noDeadline = time.Time{}

// bufferedConn replays bytes the proxy sent right after its response.
type bufferedConn struct {
	net.Conn
	reader *bufio.Reader
}

func (c *bufferedConn) Read(p []byte) (int, error) {
	return c.reader.Read(p)
}
