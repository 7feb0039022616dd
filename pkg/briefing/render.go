package briefing

import "strings"

const truncationSentinel = "\n...[truncated: max_chars budget reached]\n"

// Render renders b as markdown, truncating at cfg.MaxChars with a sentinel
// line appended in place of the cut content (spec.md §4.8 "Budgets").
func Render(b *Briefing, maxChars int) string {
	var sb strings.Builder
	sb.WriteString("# Briefing: " + b.AgentID + "\n\n")

	for _, sec := range b.Sections {
		if len(sec.Items) == 0 {
			continue
		}
		sb.WriteString("## " + sec.Name + "\n\n")
		for _, item := range sec.Items {
			sb.WriteString("- **" + item.Title + "** (" + item.Kind + ") — " + item.Reason + "\n")
		}
		if sec.Truncated {
			sb.WriteString("- _(section truncated)_\n")
		}
		sb.WriteString("\n")
	}

	out := sb.String()
	if maxChars > 0 && len(out) > maxChars {
		cut := maxChars - len(truncationSentinel)
		if cut < 0 {
			cut = 0
		}
		out = out[:cut] + truncationSentinel
		b.Truncated = true
	}
	return out
}
