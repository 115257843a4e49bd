package crawler

import (
	"strings"

	"github.com/JakeFAU/webgraph/internal/webgraph"
)

// Blocklist keeps crawl sources away from listed hosts. A rule is either a
// single host ("example.org", or a URL whose host is taken) or a domain
// wildcard ("*.example.org", ".example.org") covering the domain and every
// host below it.
type Blocklist struct {
	hosts   map[string]string
	domains map[string]string
}

// NewBlocklist parses rules. Unusable rules are ignored; nil is returned
// when none remain.
func NewBlocklist(rules []string) *Blocklist {
	b := &Blocklist{
		hosts:   make(map[string]string),
		domains: make(map[string]string),
	}
	for _, raw := range rules {
		rule := strings.ToLower(strings.TrimSpace(raw))
		switch {
		case strings.HasPrefix(rule, "*."):
			b.addDomain(strings.TrimPrefix(rule, "*."), raw)
		case strings.HasPrefix(rule, "."):
			b.addDomain(strings.TrimPrefix(rule, "."), raw)
		case strings.Contains(rule, "://"):
			if u, err := webgraph.ParseURL(rule); err == nil {
				b.hosts[u.Host()] = strings.TrimSpace(raw)
			}
		case rule != "":
			b.hosts[rule] = strings.TrimSpace(raw)
		}
	}
	if len(b.hosts) == 0 && len(b.domains) == 0 {
		return nil
	}
	return b
}

func (b *Blocklist) addDomain(domain, raw string) {
	domain = strings.Trim(domain, ".")
	if domain == "" {
		return
	}
	b.domains[domain] = strings.TrimSpace(raw)
}

// Blocks reports whether u's host is covered and returns the matching
// rule as written. A nil Blocklist blocks nothing.
func (b *Blocklist) Blocks(u *webgraph.URL) (string, bool) {
	if b == nil || u == nil {
		return "", false
	}
	host := u.Host()
	if rule, ok := b.hosts[host]; ok {
		return rule, true
	}
	// Walk up one label at a time: a.b.example.org, b.example.org, ...
	for domain := host; domain != ""; {
		if rule, ok := b.domains[domain]; ok {
			return rule, true
		}
		i := strings.IndexByte(domain, '.')
		if i < 0 {
			break
		}
		domain = domain[i+1:]
	}
	return "", false
}

// Len returns the number of rules in effect.
func (b *Blocklist) Len() int {
	if b == nil {
		return 0
	}
	return len(b.hosts) + len(b.domains)
}
