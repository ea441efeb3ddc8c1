package gateclient

import (
	"net/url"
	"regexp"
	"strings"
)

// GroupResolver maps an arbitrary URL to a short, stable rate-limit group
// name. It is immutable once constructed: literalMap and regexMap are
// fixed at NewGroupResolver time, and resolve never mutates the receiver.
type GroupResolver struct {
	literalMap    map[string]string
	regexMap      []regexMapping
	apiPathAnchor string
}

// regexMapping preserves insertion order, since regexMap iteration order is
// first-match-wins per the resolution algorithm.
type regexMapping struct {
	pattern *regexp.Regexp
	group   string
}

// GroupResolverConfig supplies the three construction-time inputs. Patterns
// that fail to compile are skipped; NewGroupResolver never returns an error
// because a resolver that falls back to the canonical URL is always valid.
type GroupResolverConfig struct {
	LiteralMap    map[string]string
	RegexMap      map[string]string
	APIPathAnchor string
}

// NewGroupResolver builds a GroupResolver from cfg. cfg.RegexMap's patterns
// are tried in Go map iteration order, which is not deterministic; callers
// needing a deterministic first-match order should instead call
// NewGroupResolverOrdered.
func NewGroupResolver(cfg GroupResolverConfig) *GroupResolver {
	gr := &GroupResolver{
		literalMap:    make(map[string]string, len(cfg.LiteralMap)),
		apiPathAnchor: cfg.APIPathAnchor,
	}
	for k, v := range cfg.LiteralMap {
		gr.literalMap[k] = v
	}
	for pattern, group := range cfg.RegexMap {
		if re, err := regexp.Compile(pattern); err == nil {
			gr.regexMap = append(gr.regexMap, regexMapping{pattern: re, group: group})
		}
	}
	return gr
}

// RegexRule is one ordered (pattern, group) pair, for callers who need
// resolution order to be deterministic and caller-controlled.
type RegexRule struct {
	Pattern string
	Group   string
}

// NewGroupResolverOrdered is like NewGroupResolver but takes regexRules as
// an explicit ordered slice, so "first match wins" is reproducible.
func NewGroupResolverOrdered(literalMap map[string]string, regexRules []RegexRule, apiPathAnchor string) *GroupResolver {
	gr := &GroupResolver{
		literalMap:    make(map[string]string, len(literalMap)),
		apiPathAnchor: apiPathAnchor,
	}
	for k, v := range literalMap {
		gr.literalMap[k] = v
	}
	for _, rule := range regexRules {
		if re, err := regexp.Compile(rule.Pattern); err == nil {
			gr.regexMap = append(gr.regexMap, regexMapping{pattern: re, group: rule.Group})
		}
	}
	return gr
}

// canonicalize strips the fragment and query, then splits the path on "/"
// dropping empty segments, satisfying R2 (query/fragment-insensitivity).
func canonicalize(rawURL string) (full string, segments []string) {
	u, err := url.Parse(rawURL)
	if err != nil {
		segments = splitPath(rawURL)
		return rawURL, segments
	}
	u.Fragment = ""
	u.RawQuery = ""
	full = u.String()
	segments = splitPath(u.Path)
	return full, segments
}

func splitPath(path string) []string {
	parts := strings.Split(path, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Resolve returns a group name for rawURL. It never returns "": absent any
// match, the canonicalized URL itself becomes the degenerate group name,
// and an empty rawURL resolves to "default".
func (gr *GroupResolver) Resolve(rawURL string) string {
	full, segments := canonicalize(rawURL)

	if name, ok := gr.literalMap[full]; ok {
		return name
	}
	if name, ok := gr.literalMap[strings.ToLower(full)]; ok {
		return name
	}

	if gr.apiPathAnchor != "" {
		for i := len(segments) - 1; i >= 0; i-- {
			if segments[i] == gr.apiPathAnchor {
				if i+1 < len(segments) {
					return segments[i+1]
				}
				break
			}
		}
	}

	joined := strings.Join(segments, "/")
	for _, rule := range gr.regexMap {
		if rule.pattern.MatchString(joined) {
			return rule.group
		}
		for _, seg := range segments {
			if rule.pattern.MatchString(seg) {
				return rule.group
			}
		}
	}

	if full == "" {
		if rawURL == "" {
			return "default"
		}
		return rawURL
	}
	return full
}
