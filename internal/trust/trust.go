// Package trust holds the per-user authorization policy for assistant
// actions: which action categories may execute without asking the user.
package trust

// Category is one of the closed set of buckets every action falls into.
type Category string

const (
	CategoryNavigation   Category = "navigation"
	CategoryContentRead  Category = "content_read"
	CategoryContentWrite Category = "content_write"
	CategorySocial       Category = "social"
	CategoryProfile      Category = "profile"
	CategorySettings     Category = "settings"
)

// Categories lists every valid category in a fixed order.
// Iteration over this slice is the canonical ordering for summaries and
// persistence, so it must stay stable.
var Categories = []Category{
	CategoryNavigation,
	CategoryContentRead,
	CategoryContentWrite,
	CategorySocial,
	CategoryProfile,
	CategorySettings,
}

// Valid reports whether c is a member of the closed category set.
func (c Category) Valid() bool {
	switch c {
	case CategoryNavigation, CategoryContentRead, CategoryContentWrite,
		CategorySocial, CategoryProfile, CategorySettings:
		return true
	}
	return false
}

// Level is the per-category policy: ask before executing, or execute
// automatically.
type Level string

const (
	LevelAsk  Level = "ask"
	LevelAuto Level = "auto"
)

// Valid reports whether l is a known trust level.
func (l Level) Valid() bool {
	return l == LevelAsk || l == LevelAuto
}

// Settings maps every category to a level. A Settings value returned by the
// store is always total — every category present, gaps filled with ask.
type Settings map[Category]Level

// DefaultSettings returns the fail-safe policy: every category asks.
func DefaultSettings() Settings {
	s := make(Settings, len(Categories))
	for _, c := range Categories {
		s[c] = LevelAsk
	}
	return s
}

// normalized returns a total copy of s: every valid category present,
// unknown categories and levels dropped in favor of ask.
func (s Settings) normalized() Settings {
	out := DefaultSettings()
	for c, l := range s {
		if c.Valid() && l.Valid() {
			out[c] = l
		}
	}
	return out
}

// clone returns a defensive copy.
func (s Settings) clone() Settings {
	out := make(Settings, len(s))
	for c, l := range s {
		out[c] = l
	}
	return out
}
