// Package tally holds the per-category interest counts collected from page
// views and the buffer that accumulates them between flushes to the CRM.
package tally

import (
	"sort"
	"strconv"
	"strings"
)

// SlugPattern is the accepted shape of a category slug on the wire.
const SlugPattern = `^[a-z0-9][a-z0-9_-]{0,63}$`

// InterestTally maps a category slug to a non-negative view count.
type InterestTally map[string]int64

// Increment adds one view for every slug, ignoring empty ones.
func (t InterestTally) Increment(slugs ...string) {
	for _, slug := range slugs {
		slug = NormalizeSlug(slug)
		if slug == "" {
			continue
		}
		t[slug]++
	}
}

// Merge sums other into a new tally. Negative counts are treated as zero.
func (t InterestTally) Merge(other InterestTally) InterestTally {
	out := make(InterestTally, len(t)+len(other))
	for _, src := range []InterestTally{t, other} {
		for k, v := range src {
			if v < 0 {
				v = 0
			}
			out[k] += v
		}
	}
	return out
}

// Slugs returns the slugs in sorted order.
func (t InterestTally) Slugs() []string {
	slugs := make([]string, 0, len(t))
	for k := range t {
		slugs = append(slugs, k)
	}
	sort.Strings(slugs)
	return slugs
}

// Properties renders the tally as CRM contact properties, prefix + slug.
func (t InterestTally) Properties(prefix string) map[string]string {
	props := make(map[string]string, len(t))
	for k, v := range t {
		props[prefix+k] = strconv.FormatInt(v, 10)
	}
	return props
}

// NormalizeSlug lower-cases and trims a category slug.
func NormalizeSlug(slug string) string {
	return strings.ToLower(strings.TrimSpace(slug))
}
