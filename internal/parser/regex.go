package parser

import (
	"fmt"
	"regexp"
	"sync"
)

var (
	regexMu    sync.Mutex
	regexCache = make(map[string]*regexp.Regexp)
)

// compile returns a cached compiled regex or compiles and caches a new one.
func compile(pattern string) (*regexp.Regexp, error) {
	regexMu.Lock()
	defer regexMu.Unlock()

	if re, ok := regexCache[pattern]; ok {
		return re, nil
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex %q: %w", pattern, err)
	}

	regexCache[pattern] = re
	return re, nil
}

// FirstMatch tries each pattern in order against text. For a pattern with a capture
// group the first group is returned, otherwise the whole match. Invalid patterns are
// skipped.
func FirstMatch(text string, patterns ...string) string {
	for _, pattern := range patterns {
		re, err := compile(pattern)
		if err != nil {
			continue
		}
		if re.NumSubexp() > 0 {
			if m := re.FindStringSubmatch(text); len(m) > 1 && m[1] != "" {
				return m[1]
			}
			continue
		}
		if m := re.FindString(text); m != "" {
			return m
		}
	}
	return ""
}
