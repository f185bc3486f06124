package trust

import "strings"

// toolCategories maps normalized tool names to their trust category.
// Tool names arrive with either dot or underscore separators; lookup happens
// after dot→underscore normalization so "feed.like" and "feed_like" resolve
// identically.
var toolCategories = map[string]Category{
	// navigation
	"navigate_to":      CategoryNavigation,
	"open_page":        CategoryNavigation,
	"go_back":          CategoryNavigation,

	// content_read
	"feed_read":           CategoryContentRead,
	"feed_search":         CategoryContentRead,
	"marketplace_search":  CategoryContentRead,
	"marketplace_listing": CategoryContentRead,
	"food_menu":           CategoryContentRead,
	"food_order_status":   CategoryContentRead,

	// content_write
	"feed_post":                  CategoryContentWrite,
	"feed_delete_post":           CategoryContentWrite,
	"marketplace_create_listing": CategoryContentWrite,
	"marketplace_update_listing": CategoryContentWrite,
	"food_place_order":           CategoryContentWrite,
	"food_cancel_order":          CategoryContentWrite,

	// social
	"feed_like":      CategorySocial,
	"feed_unlike":    CategorySocial,
	"feed_comment":   CategorySocial,
	"feed_share":     CategorySocial,
	"follow_user":    CategorySocial,
	"unfollow_user":  CategorySocial,
	"message_send":   CategorySocial,

	// profile
	"profile_update":        CategoryProfile,
	"profile_update_avatar": CategoryProfile,
	"profile_read":          CategoryProfile,

	// settings
	"settings_update":        CategorySettings,
	"settings_toggle":        CategorySettings,
	"notifications_configure": CategorySettings,
}

// readOnlyTools is a fixed set of tool names known to have no side effects.
// Non-authoritative: callers use it as a cheap hint, never as authorization.
var readOnlyTools = map[string]struct{}{
	"feed_read":           {},
	"feed_search":         {},
	"marketplace_search":  {},
	"marketplace_listing": {},
	"food_menu":           {},
	"food_order_status":   {},
	"profile_read":        {},
}

// NormalizeToolName substitutes dots with underscores so both separator
// conventions share one lookup table.
func NormalizeToolName(toolName string) string {
	return strings.ReplaceAll(toolName, ".", "_")
}

// ResolveCategory maps a tool-call name to its trust category. Unmapped
// names resolve to content_read, the most conservative read category, and
// content_read defaults to ask — unknown tools always require confirmation.
func ResolveCategory(toolName string) Category {
	if c, ok := toolCategories[NormalizeToolName(toolName)]; ok {
		return c
	}
	return CategoryContentRead
}

// IsReadOnlyTool reports whether the tool is in the fixed read-only set.
func IsReadOnlyTool(toolName string) bool {
	_, ok := readOnlyTools[NormalizeToolName(toolName)]
	return ok
}
