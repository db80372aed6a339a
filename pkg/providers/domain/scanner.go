package domain

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/likexian/whois"
	whoisparser "github.com/likexian/whois-parser"
	"github.com/weppos/publicsuffix-go/publicsuffix"
	"go.uber.org/zap"
)

// ErrLookupFailed wraps WHOIS transport and parse failures.
var ErrLookupFailed = errors.New("whois lookup failed")

// Info is the registration data gathered for one domain.
type Info struct {
	Domain      string       `json:"domain"`
	Registrar   string       `json:"registrar"`
	ExpiryDate  *time.Time   `json:"expiry_date,omitempty"`
	NameServers []string     `json:"name_servers"`
	Certificate *Certificate `json:"certificate,omitempty"`
}

// Certificate is the TLS certificate served on port 443.
type Certificate struct {
	Issuer     string    `json:"issuer"`
	ExpiryDate time.Time `json:"expiry_date"`
}

// Resolver looks up registration data for a domain name.
type Resolver interface {
	Lookup(ctx context.Context, name string) (Info, error)
}

// WhoisResolver resolves registrar and expiry via WHOIS, falling back to DNS for
// name servers and probing the TLS certificate when enabled.
type WhoisResolver struct {
	log          *zap.Logger
	timeout      time.Duration
	probeTLS     bool
	query        func(domain string) (string, error)
	lookupNS     func(ctx context.Context, host string) ([]*net.NS, error)
	probeCertFor func(ctx context.Context, host string) (*Certificate, error)
}

// NewWhoisResolver creates a resolver with the given per-lookup timeout.
func NewWhoisResolver(log *zap.Logger, timeout time.Duration, probeTLS bool) *WhoisResolver {
	client := whois.NewClient().SetTimeout(timeout)
	r := &WhoisResolver{
		log:      log,
		timeout:  timeout,
		probeTLS: probeTLS,
		query:    func(domain string) (string, error) { return client.Whois(domain) },
		lookupNS: net.DefaultResolver.LookupNS,
	}
	r.probeCertFor = r.probeCertificate
	return r
}

// RootDomain derives the registrable domain used for WHOIS.
// Example: "api.internal.example.co.uk" -> "example.co.uk".
func RootDomain(name string) string {
	name = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(name)), ".")
	if dn, err := publicsuffix.Parse(name); err == nil {
		if dn.SLD != "" && dn.TLD != "" {
			return dn.SLD + "." + dn.TLD
		}
	}
	return name
}

// Lookup fetches registrar, expiry date and name servers. Missing WHOIS fields are
// logged and left empty; only transport and parse failures are returned as errors.
func (r *WhoisResolver) Lookup(ctx context.Context, name string) (Info, error) {
	root := RootDomain(name)
	info := Info{Domain: root}

	raw, err := r.query(root)
	if err != nil {
		return info, fmt.Errorf("%w for %s: %v", ErrLookupFailed, root, err)
	}
	if err := ctx.Err(); err != nil {
		return info, err
	}

	parsed, err := whoisparser.Parse(raw)
	if err != nil {
		return info, fmt.Errorf("%w for %s: parse: %v", ErrLookupFailed, root, err)
	}

	if parsed.Registrar != nil && parsed.Registrar.Name != "" {
		info.Registrar = parsed.Registrar.Name
	} else {
		r.log.Debug("whois registrar not found", zap.String("domain", root))
	}

	if parsed.Domain != nil {
		info.ExpiryDate = expirationDate(parsed.Domain)
		if info.ExpiryDate == nil {
			r.log.Debug("whois expiration date not found", zap.String("domain", root),
				zap.String("raw", parsed.Domain.ExpirationDate))
		}
		info.NameServers = cleanHosts(parsed.Domain.NameServers)
	}

	if len(info.NameServers) == 0 {
		info.NameServers = r.dnsNameServers(ctx, root)
	}

	if r.probeTLS && r.probeCertFor != nil {
		cert, err := r.probeCertFor(ctx, name)
		if err != nil {
			r.log.Debug("tls probe failed", zap.String("host", name), zap.Error(err))
		} else {
			info.Certificate = cert
		}
	}

	return info, nil
}

var expiryLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04:05 MST",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func expirationDate(d *whoisparser.Domain) *time.Time {
	raw := strings.TrimSpace(d.ExpirationDate)
	if raw == "" {
		return nil
	}
	for _, layout := range expiryLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}

func (r *WhoisResolver) dnsNameServers(ctx context.Context, root string) []string {
	if r.lookupNS == nil {
		return nil
	}
	records, err := r.lookupNS(ctx, root)
	if err != nil {
		r.log.Debug("dns ns lookup failed", zap.String("domain", root), zap.Error(err))
		return nil
	}
	hosts := make([]string, 0, len(records))
	for _, rec := range records {
		hosts = append(hosts, rec.Host)
	}
	return cleanHosts(hosts)
}

func cleanHosts(in []string) []string {
	var out []string
	for _, h := range in {
		// Some sources include a trailing dot.
		h = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(h)), ".")
		if h != "" {
			out = append(out, h)
		}
	}
	return out
}

// probeCertificate performs a TLS handshake on port 443 and reads the leaf certificate.
// Verification is skipped so that expired certificates are still reported.
func (r *WhoisResolver) probeCertificate(ctx context.Context, host string) (*Certificate, error) {
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: r.timeout},
		Config:    &tls.Config{InsecureSkipVerify: true}, //nolint:gosec
	}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, "443"))
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	state := conn.(*tls.Conn).ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return nil, errors.New("no peer certificate")
	}
	leaf := state.PeerCertificates[0]

	issuer := leaf.Issuer.CommonName
	if len(leaf.Issuer.Organization) > 0 {
		issuer = leaf.Issuer.Organization[0]
	}
	return &Certificate{Issuer: issuer, ExpiryDate: leaf.NotAfter.UTC()}, nil
}
