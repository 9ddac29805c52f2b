package api

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"path"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
)

// Jar is a cookie jar whose contents can be exported and restored between
// process runs. Matching (domain, path, secure, expiry) is done by a
// net/http/cookiejar backed by the public suffix list; Jar keeps a copy of
// every accepted cookie so it can be listed.
type Jar struct {
	mu      sync.Mutex
	jar     *cookiejar.Jar
	entries map[entryKey]jarEntry
	now     func() time.Time
}

type entryKey struct {
	domain string
	path   string
	name   string
}

type jarEntry struct {
	origin *url.URL // scheme and host the cookie was set for
	cookie http.Cookie
}

// NewJar creates an empty jar.
func NewJar() *Jar {
	// cookiejar.New never fails.
	inner, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	return &Jar{
		jar:     inner,
		entries: make(map[entryKey]jarEntry),
		now:     time.Now,
	}
}

// SetCookies implements http.CookieJar. Cookies with a past expiry or a
// negative MaxAge are removed; cookies for a domain u cannot set are
// ignored.
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	if u == nil || u.Hostname() == "" {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	j.jar.SetCookies(u, cookies)

	host := strings.ToLower(u.Hostname())
	origin := &url.URL{Scheme: u.Scheme, Host: u.Host}
	now := j.now()
	for _, c := range cookies {
		if c == nil || c.Name == "" {
			continue
		}
		domain := strings.ToLower(strings.TrimPrefix(c.Domain, "."))
		if domain != "" && !domainMatch(host, domain) {
			continue
		}
		if domain != "" && domain != host && publicsuffix.List.PublicSuffix(domain) == domain {
			continue
		}

		stored := *c
		stored.Domain = domain
		if stored.Path == "" || stored.Path[0] != '/' {
			stored.Path = defaultPath(u.Path)
		}
		if stored.MaxAge > 0 {
			stored.Expires = now.Add(time.Duration(stored.MaxAge) * time.Second)
		}
		key := entryKey{domain: domain, path: stored.Path, name: stored.Name}
		if domain == "" {
			key.domain = host
		}
		if stored.MaxAge < 0 || (!stored.Expires.IsZero() && !stored.Expires.After(now)) {
			delete(j.entries, key)
			continue
		}
		stored.MaxAge = 0
		stored.Raw = ""
		j.entries[key] = jarEntry{origin: origin, cookie: stored}
	}
}

// Cookies implements http.CookieJar.
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.jar.Cookies(u)
}

// Get returns the first live cookie called name.
func (j *Jar) Get(name string) (*http.Cookie, bool) {
	for _, c := range j.All() {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// All returns copies of every live cookie, sorted by name, domain and path.
// Host-only cookies have an empty Domain.
func (j *Jar) All() []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.purgeLocked()
	out := make([]*http.Cookie, 0, len(j.entries))
	for _, e := range j.sortedLocked() {
		cp := e.cookie
		out = append(out, &cp)
	}
	return out
}

// Load restores cookies exported by All that were set by u's host.
func (j *Jar) Load(u *url.URL, cookies []*http.Cookie) {
	j.SetCookies(u, cookies)
}

// Expire sets the expiry of every cookie called name to the Unix epoch,
// removing it.
func (j *Jar) Expire(name string) {
	j.mu.Lock()
	var targets []jarEntry
	for _, e := range j.entries {
		if e.cookie.Name == name {
			targets = append(targets, e)
		}
	}
	j.mu.Unlock()

	for _, e := range targets {
		j.SetCookies(e.origin, []*http.Cookie{{
			Name:    name,
			Domain:  e.cookie.Domain,
			Path:    e.cookie.Path,
			Expires: time.Unix(0, 0).UTC(),
		}})
	}
}

func (j *Jar) purgeLocked() {
	now := j.now()
	for key, e := range j.entries {
		if !e.cookie.Expires.IsZero() && !e.cookie.Expires.After(now) {
			delete(j.entries, key)
		}
	}
}

func (j *Jar) sortedLocked() []jarEntry {
	keys := make([]entryKey, 0, len(j.entries))
	for k := range j.entries {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b entryKey) int {
		return strings.Compare(a.name+"\x00"+a.domain+"\x00"+a.path, b.name+"\x00"+b.domain+"\x00"+b.path)
	})
	out := make([]jarEntry, 0, len(keys))
	for _, k := range keys {
		out = append(out, j.entries[k])
	}
	return out
}

// domainMatch reports whether host may set or receive a cookie for domain.
func domainMatch(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// defaultPath is the RFC 6265 default-path of a request path.
func defaultPath(p string) string {
	if p == "" || p[0] != '/' {
		return "/"
	}
	dir := path.Dir(p)
	if dir == "." {
		return "/"
	}
	return dir
}
