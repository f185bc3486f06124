package registry

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
)

const contextUnavailable = "(context unavailable)"

// CapabilitySummary renders a deterministic text block enumerating every
// registered page's capabilities and actions with their parameter
// signatures. This is the system-prompt material describing what the
// assistant can see and do right now. Pages are sorted by id so the output
// is stable regardless of registration order.
func (r *Registry) CapabilitySummary() string {
	r.mu.RLock()
	pages := make([]*PageRegistration, 0, len(r.pages))
	for _, p := range r.pages {
		pages = append(pages, p)
	}
	r.mu.RUnlock()

	sort.Slice(pages, func(i, j int) bool { return pages[i].PageID < pages[j].PageID })

	var b strings.Builder
	b.WriteString("Available features and actions:\n")
	if len(pages) == 0 {
		b.WriteString("(none registered)\n")
		return b.String()
	}

	for _, p := range pages {
		fmt.Fprintf(&b, "\n## %s (%s)\n", p.Name, p.PageID)
		if len(p.Capabilities) > 0 {
			b.WriteString("Can see:\n")
			for _, c := range p.Capabilities {
				fmt.Fprintf(&b, "- [%s] %s: %s\n", c.Category, c.Label, c.Description)
			}
		}
		if len(p.Actions) > 0 {
			b.WriteString("Can do:\n")
			for _, a := range p.Actions {
				fmt.Fprintf(&b, "- %s(%s): %s [category: %s]\n",
					a.ID, formatParameters(a.Parameters), a.Description, a.Category)
			}
		}
	}
	return b.String()
}

// formatParameters renders an action's parameter signature, e.g.
// "storyId: string, count?: number, mood: string{happy|sad}".
func formatParameters(params []ActionParameter) string {
	parts := make([]string, 0, len(params))
	for _, p := range params {
		name := p.Name
		if !p.Required {
			name += "?"
		}
		sig := fmt.Sprintf("%s: %s", name, p.Type)
		if len(p.Enum) > 0 {
			sig += "{" + strings.Join(p.Enum, "|") + "}"
		}
		parts = append(parts, sig)
	}
	return strings.Join(parts, ", ")
}

// EnrichedContext composes a fixed preamble (registered page names, active
// page name) with the active page's own context output. Context building
// must never block or fail the pipeline: a GetContext error or panic is
// replaced with a placeholder.
func (r *Registry) EnrichedContext() string {
	r.mu.RLock()
	names := make([]string, 0, len(r.order))
	for _, id := range r.order {
		names = append(names, r.pages[id].Name)
	}
	var active *PageRegistration
	if r.activeID != "" {
		active = r.pages[r.activeID]
	}
	r.mu.RUnlock()

	var b strings.Builder
	fmt.Fprintf(&b, "Registered features: %s\n", strings.Join(names, ", "))
	if active == nil {
		b.WriteString("Active feature: (none)\n")
		return b.String()
	}

	fmt.Fprintf(&b, "Active feature: %s\n\n", active.Name)
	b.WriteString(r.pageContext(active))
	return b.String()
}

// pageContext runs a page's GetContext with error and panic isolation.
func (r *Registry) pageContext(page *PageRegistration) (out string) {
	if page.GetContext == nil {
		return contextUnavailable
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("page context panicked",
				zap.String("page_id", page.PageID),
				zap.Any("panic", rec),
			)
			out = contextUnavailable
		}
	}()
	ctx, err := page.GetContext()
	if err != nil {
		r.logger.Warn("page context failed",
			zap.String("page_id", page.PageID),
			zap.Error(err),
		)
		return contextUnavailable
	}
	return ctx
}
