package stash

import "regexp"

// A key may not contain braces, so a token nested in a JSON object such as
// {"id": {userId}} still matches the innermost pair.
var placeholderRE = regexp.MustCompile(`\{([^{}]+)\}`)

// Resolve replaces every {key} token in text with the stashed value for key.
// Tokens whose key is not stashed are left as they are. The substitution is a
// single pass: values that themselves contain {tokens} are not expanded again.
func (s *Stash) Resolve(text string) string {
	if text == "" {
		return text
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return placeholderRE.ReplaceAllStringFunc(text, func(token string) string {
		key := token[1 : len(token)-1]
		v, ok := s.items[key]
		if !ok {
			return token
		}
		return v.String()
	})
}

// Placeholders returns the keys referenced by {key} tokens in text, in order of
// appearance. Repeated keys are reported once.
func Placeholders(text string) []string {
	matches := placeholderRE.FindAllStringSubmatch(text, -1)
	seen := make(map[string]bool, len(matches))
	var keys []string
	for _, m := range matches {
		if seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		keys = append(keys, m[1])
	}
	return keys
}
