// Package resolve maps a free-form service query to a registry record.
//
// Resolution rules, first match wins:
//  1. blank query: InvalidInput
//  2. exact case-insensitive key
//  3. exact case-insensitive alias
//  4. exact normalized match against key, display name or alias
//  5. normalized prefix/substring match; one candidate resolves, several are
//     Ambiguous (sorted keys), none is NotFound
package resolve

import (
	"sort"
	"strings"
	"unicode"

	"github.com/loykin/servctl/internal/errs"
	"github.com/loykin/servctl/internal/service"
)

// DefaultFillerWords are stripped from queries and tokens before fuzzy
// matching. Chinese particles come first because operators phrase requests as
// "更新一下博客服务".
var DefaultFillerWords = []string{
	"服务器", "服务", "项目", "更新", "重启", "一下", "下", "的",
	"service", "server", "project", "update", "restart", "please", "the", "of",
}

// Resolver resolves queries against a registry.
type Resolver struct {
	// fillers written in scripts without word boundaries (CJK), stripped as
	// substrings
	fillers []string
	// fillers stripped only as whole words
	words map[string]bool
}

// New returns a Resolver stripping the given filler words. A nil slice selects
// DefaultFillerWords; an empty non-nil slice disables stripping.
func New(fillers []string) *Resolver {
	if fillers == nil {
		fillers = DefaultFillerWords
	}
	r := &Resolver{words: make(map[string]bool)}
	for _, w := range fillers {
		w = strings.ToLower(strings.TrimSpace(w))
		switch {
		case w == "":
		case spaced(w):
			r.words[w] = true
		default:
			r.fillers = append(r.fillers, w)
		}
	}
	// longest first so "服务器" is not reduced to "器" by "服务"
	sort.SliceStable(r.fillers, func(i, j int) bool { return len(r.fillers[i]) > len(r.fillers[j]) })
	return r
}

// Normalize lowercases s, strips filler words and drops every rune that is not
// a letter or digit. Fillers in space separated scripts only match whole
// words, so "the" leaves "theater" alone.
func (r *Resolver) Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, w := range r.fillers {
		s = strings.ReplaceAll(s, w, "")
	}
	var b strings.Builder
	for _, word := range strings.FieldsFunc(s, func(c rune) bool {
		return !unicode.IsLetter(c) && !unicode.IsDigit(c)
	}) {
		if !r.words[word] {
			b.WriteString(word)
		}
	}
	return b.String()
}

// spaced reports whether w is written in a script that separates words with
// spaces, i.e. it has no Han, Hiragana, Katakana or Hangul runes.
func spaced(w string) bool {
	for _, c := range w {
		if unicode.In(c, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul) {
			return false
		}
	}
	return true
}

// Resolve returns the key and record matching query.
func (r *Resolver) Resolve(records map[string]service.Record, query string) (string, service.Record, error) {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return "", service.Record{}, errs.New(errs.InvalidInput, "service name is empty")
	}

	keys := sortedKeys(records)

	for _, k := range keys {
		if strings.ToLower(k) == needle {
			return k, records[k], nil
		}
	}

	for _, k := range keys {
		for _, a := range records[k].Aliases {
			if strings.ToLower(strings.TrimSpace(a)) == needle {
				return k, records[k], nil
			}
		}
	}

	norm := r.Normalize(needle)
	if norm == "" {
		return "", service.Record{}, errs.New(errs.NotFound, "service not found: %s", query)
	}

	var candidates []string
	for _, k := range keys {
		tokens := r.normalizedTokens(k, records[k])
		for _, t := range tokens {
			if t == norm {
				return k, records[k], nil
			}
		}
		for _, t := range tokens {
			if strings.HasPrefix(t, norm) || strings.Contains(t, norm) {
				candidates = append(candidates, k)
				break
			}
		}
	}

	switch len(candidates) {
	case 0:
		return "", service.Record{}, errs.New(errs.NotFound, "service not found: %s", query)
	case 1:
		return candidates[0], records[candidates[0]], nil
	default:
		return "", service.Record{}, errs.NewAmbiguous(query, candidates)
	}
}

func (r *Resolver) normalizedTokens(key string, rec service.Record) []string {
	raw := rec.Tokens(key)
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		if n := r.Normalize(t); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func sortedKeys(records map[string]service.Record) []string {
	keys := make([]string, 0, len(records))
	for k := range records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
