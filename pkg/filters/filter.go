// Package filters matches launch output lines against operator queries.
package filters

import (
	"fmt"
	"regexp"
	"strings"
)

type FilterType string

const (
	FilterTypeContains FilterType = "contains"
	FilterTypeRegex    FilterType = "regex"
	FilterTypeExact    FilterType = "exact"
)

const (
	regexPrefix = "re:"
	exactPrefix = "="
)

type Filter struct {
	Type          FilterType
	Pattern       string
	CaseSensitive bool
	regex         *regexp.Regexp
}

func NewFilter(filterType FilterType, pattern string, caseSensitive bool) (*Filter, error) {
	f := &Filter{
		Type:          filterType,
		Pattern:       pattern,
		CaseSensitive: caseSensitive,
	}

	switch filterType {
	case FilterTypeRegex:
		flags := ""
		if !caseSensitive {
			flags = "(?i)"
		}
		regex, err := regexp.Compile(flags + pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		f.regex = regex
	case FilterTypeContains, FilterTypeExact:
	default:
		return nil, fmt.Errorf("unknown filter type %q", filterType)
	}
	return f, nil
}

// Parse builds a case-insensitive filter from a query string: "re:<expr>"
// is a regular expression, "=<text>" an exact match, anything else a
// substring match.
func Parse(query string) (*Filter, error) {
	switch {
	case strings.HasPrefix(query, regexPrefix):
		return NewFilter(FilterTypeRegex, strings.TrimPrefix(query, regexPrefix), false)
	case strings.HasPrefix(query, exactPrefix):
		return NewFilter(FilterTypeExact, strings.TrimPrefix(query, exactPrefix), false)
	default:
		return NewFilter(FilterTypeContains, query, false)
	}
}

func (f *Filter) Matches(content string) bool {
	switch f.Type {
	case FilterTypeContains:
		if f.CaseSensitive {
			return strings.Contains(content, f.Pattern)
		}
		return strings.Contains(strings.ToLower(content), strings.ToLower(f.Pattern))

	case FilterTypeRegex:
		return f.regex.MatchString(content)

	case FilterTypeExact:
		if f.CaseSensitive {
			return content == f.Pattern
		}
		return strings.EqualFold(content, f.Pattern)

	default:
		return false
	}
}
