package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mba-tools/jirald/internal/domain/card"
	"github.com/mba-tools/jirald/internal/port/tracker"
)

// descriptionExcerptLen caps the description excerpt quoted in a reply.
const descriptionExcerptLen = 280

// FormatReply renders the run outcome as a markdown PR comment. Every piece
// of card content it quotes comes from the tracker-returned state in the
// ActionResult, never from the pre-mutation intent, so the reply cannot
// drift from what actually exists in the tracker.
func FormatReply(result *card.ActionResult) string {
	if !result.Success {
		return formatFailure(result)
	}

	switch result.Action {
	case card.ActionCreate:
		return formatMutation("Created", result)
	case card.ActionUpdate:
		return formatMutation("Updated", result)
	case card.ActionQuery:
		return formatQuery(result.Issues)
	default:
		return fmt.Sprintf("✅ Done (%s).", result.Action)
	}
}

func formatMutation(verb string, result *card.ActionResult) string {
	issue := result.Issue

	var sb strings.Builder
	fmt.Fprintf(&sb, "✅ %s JIRA issue: [%s](%s)\n\n", verb, issue.Key, issue.URL)
	fmt.Fprintf(&sb, "**Summary:** %s\n", issue.Summary)
	fmt.Fprintf(&sb, "**Type:** %s", issue.IssueType)
	if issue.Status != "" {
		fmt.Fprintf(&sb, " · **Status:** %s", issue.Status)
	}
	if excerpt := excerpt(issue.Description); excerpt != "" {
		fmt.Fprintf(&sb, "\n\n> %s", excerpt)
	}

	if result.LabelSwapErr != nil {
		fmt.Fprintf(&sb, "\n\n_Note: the card was created but updating the PR labels failed: %s_", result.LabelSwapErr)
	}
	return sb.String()
}

func formatQuery(issues []tracker.Issue) string {
	if len(issues) == 0 {
		return "🔍 No matching issues found."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🔍 Found %d issue(s):\n\n", len(issues))
	for _, issue := range issues {
		fmt.Fprintf(&sb, "- [%s](%s) — %s (%s, %s)\n",
			issue.Key, issue.URL, issue.Summary, issue.IssueType, issue.Status)
	}
	return sb.String()
}

// formatFailure reports the raw error kind and message without inventing a
// cause.
func formatFailure(result *card.ActionResult) string {
	kind := "error"
	var trackerErr *tracker.Error
	var interpErr *InterpretationError
	switch {
	case errors.As(result.Err, &trackerErr):
		kind = string(trackerErr.Kind)
	case errors.As(result.Err, &interpErr):
		kind = "interpretation"
	}

	return fmt.Sprintf("❌ Failed to %s JIRA issue (%s): %s", result.Action, kind, result.Err)
}

func excerpt(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
	if len(s) <= descriptionExcerptLen {
		return s
	}
	return s[:descriptionExcerptLen] + "…"
}
