package webgraph

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/publicsuffix"

	"github.com/JakeFAU/webgraph/internal/hash"
)

// ErrMalformedURL is returned when a URL cannot serve as an edge endpoint.
var ErrMalformedURL = errors.New("malformed url")

var rootPaths = map[string]struct{}{
	"":              {},
	"/":             {},
	"/index.html":   {},
	"/index.htm":    {},
	"/index.php":    {},
	"/home.html":    {},
	"/home.htm":     {},
	"/home.php":     {},
	"/default.html": {},
	"/default.htm":  {},
	"/default.php":  {},
}

// URL is a normalized absolute URL together with its endpoint identity.
type URL struct {
	u        *url.URL
	normal   string
	hash     string
	hostHash string
}

// ParseURL normalizes raw and derives its identity hash. It lowercases the
// scheme and host, removes default ports, sorts query parameters, drops the
// fragment and turns an empty path into "/".
func ParseURL(raw string) (*URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q is not absolute", ErrMalformedURL, raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Scheme == "http" && strings.HasSuffix(u.Host, ":80") {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" && strings.HasSuffix(u.Host, ":443") {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: %q has no host", ErrMalformedURL, raw)
	}
	u.Fragment = ""
	u.RawFragment = ""
	u.User = nil
	if u.Path == "" {
		u.Path = "/"
		u.RawPath = ""
	}
	if u.RawQuery != "" {
		u.RawQuery = u.Query().Encode()
	}
	u.ForceQuery = false

	normal := u.String()
	host := u.Hostname()
	return &URL{
		u:        u,
		normal:   normal,
		hash:     hash.URL(normal, host),
		hostHash: hash.Host(host),
	}, nil
}

// ParseURLWithHash rebuilds a URL from stored form and keeps the stored
// identity instead of recomputing it.
func ParseURLWithHash(raw, id string) (*URL, error) {
	parsed, err := ParseURL(raw)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return parsed, nil
	}
	if len(id) != hash.URLLength {
		return nil, fmt.Errorf("%w: id %q has length %d", ErrMalformedURL, id, len(id))
	}
	parsed.hash = id
	return parsed, nil
}

// MustParseURL is ParseURL for literals known to be valid.
func MustParseURL(raw string) *URL {
	u, err := ParseURL(raw)
	if err != nil {
		panic(err)
	}
	return u
}

// String returns the normal form.
func (u *URL) String() string { return u.normal }

// Normalform returns the normalized URL string.
func (u *URL) Normalform() string { return u.normal }

// Hash returns the endpoint identity.
func (u *URL) Hash() string { return u.hash }

// HostHash returns the host identity.
func (u *URL) HostHash() string { return u.hostHash }

// Protocol returns the lowercase scheme.
func (u *URL) Protocol() string { return u.u.Scheme }

// Stub returns the normal form after "scheme://".
func (u *URL) Stub() string {
	if i := strings.Index(u.normal, "://"); i >= 0 {
		return u.normal[i+3:]
	}
	return u.normal
}

// Chars returns the character length of the normal form.
func (u *URL) Chars() int { return utf8.RuneCountInString(u.normal) }

// Host returns the hostname without port.
func (u *URL) Host() string { return u.u.Hostname() }

// Path returns the decoded path.
func (u *URL) Path() string { return u.u.Path }

// Folders returns the directory segments of the path, excluding the file name.
func (u *URL) Folders() []string {
	p := u.u.Path
	if i := strings.LastIndex(p, "/"); i >= 0 {
		p = p[:i]
	}
	var out []string
	for _, seg := range strings.Split(p, "/") {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

// FileName returns the last path segment, empty for directory paths.
func (u *URL) FileName() string {
	p := u.u.Path
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}

// FileExtension returns the lowercase extension of the file name, without the dot.
func (u *URL) FileExtension() string {
	name := u.FileName()
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}

// SearchPart returns query keys in sorted order with the first value of each.
// ok is false when the URL has no query.
func (u *URL) SearchPart() (keys, values []string, ok bool) {
	if u.u.RawQuery == "" {
		return nil, nil, false
	}
	q := u.u.Query()
	keys = make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	values = make([]string, 0, len(keys))
	for _, k := range keys {
		values = append(values, q.Get(k))
	}
	return keys, values, true
}

// ProbablyRoot reports whether the URL looks like the entry page of its site.
func (u *URL) ProbablyRoot() bool {
	if u.u.RawQuery != "" {
		return false
	}
	_, ok := rootPaths[strings.ToLower(u.u.Path)]
	return ok
}

// HostParts splits the host into public suffix, organization label and the
// remaining subdomain labels. IP hosts are returned whole as the suffix.
func (u *URL) HostParts() (dnc, organization, subdomain string) {
	host := u.Host()
	if net.ParseIP(host) != nil {
		return host, "", ""
	}
	dnc, _ = publicsuffix.PublicSuffix(host)
	if dnc == host {
		return dnc, "", ""
	}
	rest := strings.TrimSuffix(host, "."+dnc)
	if i := strings.LastIndex(rest, "."); i >= 0 {
		return dnc, rest[i+1:], rest[:i]
	}
	return dnc, rest, ""
}

// SameHost reports whether both URLs share a hostname.
func (u *URL) SameHost(other *URL) bool {
	return other != nil && u.Host() == other.Host()
}
