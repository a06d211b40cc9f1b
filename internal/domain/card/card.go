// Package card defines the structured intent derived from a model reply and
// the result of acting on it.
package card

import "github.com/mba-tools/jirald/internal/port/tracker"

// Action is the tracker operation an intent asks for.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionQuery  Action = "query"
)

// IssueTypes are the only issue types the bot will create.
var IssueTypes = map[string]bool{
	"Task":    true,
	"Story":   true,
	"Epic":    true,
	"Bug":     true,
	"Subtask": true,
}

// DefaultIssueType is used when the model produces an unknown type on create.
const DefaultIssueType = "Task"

// CreateIntent holds the fields for a new card.
type CreateIntent struct {
	Summary     string `json:"summary"`
	Description string `json:"description"`
	IssueType   string `json:"issue_type"`
}

// UpdateIntent holds a sparse set of field changes. Nil pointers mean "leave
// the tracker field untouched"; they must never reach the wire.
type UpdateIntent struct {
	IssueKey    string  `json:"issue_key"`
	Summary     *string `json:"summary,omitempty"`
	Description *string `json:"description,omitempty"`
	IssueType   *string `json:"issue_type,omitempty"`
}

// Fields returns only the fields the intent actually sets.
func (u *UpdateIntent) Fields() map[string]string {
	fields := make(map[string]string)
	if u.Summary != nil {
		fields["summary"] = *u.Summary
	}
	if u.Description != nil {
		fields["description"] = *u.Description
	}
	if u.IssueType != nil {
		fields["issuetype"] = *u.IssueType
	}
	return fields
}

// QueryIntent holds a JQL-like filter string.
type QueryIntent struct {
	JQL string `json:"jql"`
}

// Intent is the tagged variant over the three actions. Exactly one of the
// pointers is set, matching Action.
type Intent struct {
	Action Action        `json:"action"`
	Create *CreateIntent `json:"create,omitempty"`
	Update *UpdateIntent `json:"update,omitempty"`
	Query  *QueryIntent  `json:"query,omitempty"`
}

// ActionResult is the outcome of one pipeline run, consumed immediately by
// the reply formatter and not persisted.
type ActionResult struct {
	Success bool
	Action  Action
	// Issue is the tracker-returned state after a create or update.
	Issue *tracker.Issue
	// Issues holds query results.
	Issues []tracker.Issue
	Err    error
	// LabelSwapErr reports the non-fatal post-create label bookkeeping
	// failure, separate from the card result itself.
	LabelSwapErr error
}
