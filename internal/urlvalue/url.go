package urlvalue

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
)

// ErrInvalid is wrapped by every construction or parse failure
var ErrInvalid = errors.New("invalid module url")

var (
	schemeRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.\-]*$`)
	hostRe   = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9\-]*$`)
	pathRe   = regexp.MustCompile(`^/[A-Za-z0-9\-]*$`)
)

// URL addresses a module: Host selects the module, Path one of its methods
type URL struct {
	Scheme string
	Host   string
	Path   string
	Query  map[string]string
}

// New validates the parts and builds a URL. An empty path means "no path".
func New(scheme, host, path string, query map[string]string) (URL, error) {
	if !schemeRe.MatchString(scheme) {
		return URL{}, fmt.Errorf("%w: scheme %q", ErrInvalid, scheme)
	}
	if !hostRe.MatchString(host) {
		return URL{}, fmt.Errorf("%w: host %q", ErrInvalid, host)
	}
	if path != "" && !pathRe.MatchString(path) {
		return URL{}, fmt.Errorf("%w: path %q", ErrInvalid, path)
	}

	u := URL{Scheme: scheme, Host: host, Path: path}
	if len(query) > 0 {
		u.Query = make(map[string]string, len(query))
		for k, v := range query {
			u.Query[k] = v
		}
	}
	return u, nil
}

// Parse splits a serialized module URL and re-applies the validation rules
func Parse(raw string) (URL, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return URL{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	var query map[string]string
	if values := parsed.Query(); len(values) > 0 {
		query = make(map[string]string, len(values))
		for k, v := range values {
			if len(v) > 0 {
				query[k] = v[0]
			} else {
				query[k] = ""
			}
		}
	}
	return New(parsed.Scheme, parsed.Host, parsed.Path, query)
}

// String serializes the URL with query keys in sorted order
func (u URL) String() string {
	var b strings.Builder
	b.WriteString(u.Scheme)
	b.WriteString("://")
	b.WriteString(u.Host)
	b.WriteString(u.Path)

	if len(u.Query) > 0 {
		keys := make([]string, 0, len(u.Query))
		for k := range u.Query {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		values := url.Values{}
		for _, k := range keys {
			values.Set(k, u.Query[k])
		}
		b.WriteByte('?')
		b.WriteString(values.Encode())
	}
	return b.String()
}

// QueryMap returns a copy of the query parameters, never nil
func (u URL) QueryMap() map[string]string {
	out := make(map[string]string, len(u.Query)+1)
	for k, v := range u.Query {
		out[k] = v
	}
	return out
}
