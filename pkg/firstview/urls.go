package firstview

import (
	"fmt"
	"net/url"
	"strings"

	errs "fvdownloader/pkg/errors"
)

// CollectionPath is the listing endpoint every collection URL points at
const CollectionPath = "/collection_images.php"

// ValidateCollectionURL checks that raw is a collection listing on the
// site rooted at baseURL
func ValidateCollectionURL(baseURL, raw string) error {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errs.New(errs.KindInvalidURL, "validate", raw, fmt.Errorf("not an absolute URL"))
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return errs.New(errs.KindInvalidURL, "validate", raw, fmt.Errorf("bad base URL %q", baseURL))
	}

	if hostKey(u.Host) != hostKey(base.Host) {
		return errs.New(errs.KindInvalidURL, "validate", raw, fmt.Errorf("host %s is not %s", u.Host, base.Host))
	}
	if u.Path != CollectionPath || u.Query().Get("id") == "" {
		return errs.New(errs.KindInvalidURL, "validate", raw,
			fmt.Errorf("expected %s%s?id=...", strings.TrimRight(baseURL, "/"), CollectionPath))
	}
	return nil
}

func hostKey(host string) string {
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}

// resolve makes ref absolute against base, returning "" for empty refs
func resolve(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base == nil {
		return r.String()
	}
	return base.ResolveReference(r).String()
}

// Transform rewrites thumbnail URLs into full-resolution URLs. It is
// derived from one (thumbnail, full image) pair of the same picture.
type Transform struct {
	Prefix      string
	ThumbMiddle string
	FullMiddle  string
	Suffix      string
	SuffixLen   int
}

// DeriveTransform finds the common prefix and suffix of thumb and full and
// records the differing middles
func DeriveTransform(thumb, full string) Transform {
	p := 0
	for p < len(thumb) && p < len(full) && thumb[p] == full[p] {
		p++
	}

	s := 0
	for s < len(thumb)-p && s < len(full)-p && thumb[len(thumb)-1-s] == full[len(full)-1-s] {
		s++
	}

	return Transform{
		Prefix:      thumb[:p],
		ThumbMiddle: thumb[p : len(thumb)-s],
		FullMiddle:  full[p : len(full)-s],
		Suffix:      thumb[len(thumb)-s:],
		SuffixLen:   s,
	}
}

// Identity reports whether Apply leaves every URL unchanged
func (t Transform) Identity() bool {
	return t.ThumbMiddle == t.FullMiddle
}

// Apply maps a thumbnail URL to its full-resolution counterpart. ok is
// false when no rule matches thumb; the caller has to look the full URL up
// some other way.
func (t Transform) Apply(thumb string) (full string, ok bool) {
	if t.Identity() {
		return thumb, true
	}
	if strings.HasPrefix(thumb, t.Prefix) {
		if lead := t.Prefix + t.ThumbMiddle; t.ThumbMiddle != "" && strings.HasPrefix(thumb, lead) {
			return t.Prefix + t.FullMiddle + thumb[len(lead):], true
		}
		if len(thumb)-len(t.Prefix) >= t.SuffixLen {
			return t.Prefix + t.FullMiddle + thumb[len(thumb)-t.SuffixLen:], true
		}
		return thumb, false
	}

	// the picture id sits before the differing part, e.g. 12345_s.jpg
	dir := t.Prefix[:strings.LastIndex(t.Prefix, "/")+1]
	tail := t.ThumbMiddle + t.Suffix
	if dir != "" && t.ThumbMiddle != "" && strings.HasPrefix(thumb, dir) && strings.HasSuffix(thumb, tail) &&
		len(thumb)-len(tail) >= len(dir) {
		return thumb[:len(thumb)-len(tail)] + t.FullMiddle + t.Suffix, true
	}
	return thumb, false
}
