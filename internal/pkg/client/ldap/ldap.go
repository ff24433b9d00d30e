// Package ldap resolves numeric uids to user names when the users.json
// document does not know them.
package ldap

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"time"

	gldap "github.com/go-ldap/ldap/v3"

	"fern/config"
)

// Client wraps an established LDAP connection.
type Client struct {
	Conn   *gldap.Conn
	BaseDN string
}

// Close closes the underlying LDAP connection.
func (c *Client) Close() {
	if c != nil && c.Conn != nil {
		c.Conn.Close()
	}
}

// New creates and binds an LDAP client connection based on the provided
// config. It supports plain LDAP, LDAPS, and STARTTLS, optional custom CAs
// and client certs, and connect/read timeouts.
func New(cfg config.LDAP) (*Client, error) {
	tlsCfg, err := buildTLSConfig(cfg)
	if err != nil {
		return nil, err
	}

	scheme := "ldap"
	if cfg.UseTLS {
		scheme = "ldaps"
	}
	addr := fmt.Sprintf("%s://%s:%d", scheme, cfg.Host, cfg.Port)

	var opts []gldap.DialOpt
	if tlsCfg != nil {
		opts = append(opts, gldap.DialWithTLSConfig(tlsCfg))
	}
	if d := connectDialer(cfg); d != nil {
		opts = append(opts, gldap.DialWithDialer(d))
	}

	conn, err := gldap.DialURL(addr, opts...)
	if err != nil {
		return nil, err
	}

	// STARTTLS upgrade is only meaningful on a plain connection.
	if cfg.StartTLS && !cfg.UseTLS {
		if err := conn.StartTLS(tlsCfg); err != nil {
			conn.Close()
			return nil, err
		}
	}

	if rt := parseDuration(cfg.ReadTimeout); rt > 0 {
		conn.SetTimeout(rt)
	}

	if cfg.BindDN != "" || cfg.BindPassword != "" {
		if err := conn.Bind(cfg.BindDN, cfg.BindPassword); err != nil {
			conn.Close()
			return nil, err
		}
	}

	return &Client{Conn: conn, BaseDN: cfg.BaseDN}, nil
}

// GetUsernameByUIDNumber looks up the posixAccount with the given uidNumber
// and returns its uid attribute (falling back to cn). A uid with no entry is
// reported as an error; the caller decides how to degrade.
func (c *Client) GetUsernameByUIDNumber(ctx context.Context, uidNumber int) (string, error) {
	if c == nil || c.Conn == nil {
		return "", fmt.Errorf("ldap client not initialized")
	}
	filter := fmt.Sprintf("(&(objectClass=posixAccount)(uidNumber=%d))", uidNumber)
	req := gldap.NewSearchRequest(
		c.BaseDN,
		gldap.ScopeWholeSubtree,
		gldap.NeverDerefAliases,
		1, 0, false,
		filter,
		[]string{"uid", "cn"},
		nil,
	)
	// go-ldap doesn't accept context in Search; timeouts handled by conn
	resp, err := c.Conn.Search(req)
	if err != nil {
		return "", err
	}
	if len(resp.Entries) == 0 {
		return "", fmt.Errorf("no entry with uidNumber=%d under %s", uidNumber, c.BaseDN)
	}
	e := resp.Entries[0]
	name := e.GetAttributeValue("uid")
	if name == "" {
		name = e.GetAttributeValue("cn")
	}
	if name == "" {
		return "", fmt.Errorf("entry %s has neither uid nor cn", e.DN)
	}
	return name, nil
}

// buildTLSConfig constructs a tls.Config based on config.LDAP.
// Returns nil if no TLS options are needed and UseTLS/StartTLS are false.
func buildTLSConfig(cfg config.LDAP) (*tls.Config, error) {
	needsTLS := cfg.UseTLS || cfg.StartTLS || cfg.InsecureSkipVerify || cfg.RootCAFile != "" || cfg.ClientCertFile != "" || cfg.ClientKeyFile != "" || cfg.ServerName != ""
	if !needsTLS {
		return nil, nil
	}

	tlsCfg := &tls.Config{
		InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // configurable for testing/non-prod
	}
	if cfg.ServerName != "" {
		tlsCfg.ServerName = cfg.ServerName
	}

	if cfg.RootCAFile != "" {
		pem, err := os.ReadFile(cfg.RootCAFile)
		if err != nil {
			return nil, err
		}
		pool, err := x509.SystemCertPool()
		if err != nil || pool == nil {
			pool = x509.NewCertPool()
		}
		if ok := pool.AppendCertsFromPEM(pem); !ok {
			return nil, fmt.Errorf("failed to append Root CA from %s", cfg.RootCAFile)
		}
		tlsCfg.RootCAs = pool
	}

	if cfg.ClientCertFile != "" && cfg.ClientKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.ClientCertFile, cfg.ClientKeyFile)
		if err != nil {
			return nil, err
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}

	return tlsCfg, nil
}

// connectDialer builds a net.Dialer with the configured timeout.
func connectDialer(cfg config.LDAP) *net.Dialer {
	to := parseDuration(cfg.ConnectTimeout)
	if to <= 0 {
		return nil
	}
	return &net.Dialer{Timeout: to}
}

// parseDuration returns 0 on empty or invalid duration strings.
func parseDuration(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}
