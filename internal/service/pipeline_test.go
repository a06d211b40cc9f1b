package service_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	jotel "github.com/mba-tools/jirald/internal/adapter/otel"
	"github.com/mba-tools/jirald/internal/domain/card"
	"github.com/mba-tools/jirald/internal/domain/event"
	"github.com/mba-tools/jirald/internal/port/forge"
	"github.com/mba-tools/jirald/internal/port/tracker"
	"github.com/mba-tools/jirald/internal/prompt"
	"github.com/mba-tools/jirald/internal/service"
)

// fakeTracker records mutations and serves canned reads.
type fakeTracker struct {
	creates    []tracker.CreateRequest
	updates    []map[string]string
	searches   []string
	current    *tracker.Issue
	createErr  error
	nextKeySeq int
}

func (f *fakeTracker) CreateIssue(_ context.Context, req tracker.CreateRequest) (*tracker.Issue, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.creates = append(f.creates, req)
	f.nextKeySeq++
	return &tracker.Issue{
		Key:         fmt.Sprintf("%s-%d", req.ProjectKey, 41+f.nextKeySeq),
		Summary:     req.Summary + " (normalized)",
		Description: req.Description,
		IssueType:   req.IssueType,
		Status:      "To Do",
		URL:         fmt.Sprintf("https://example.atlassian.net/browse/%s-%d", req.ProjectKey, 41+f.nextKeySeq),
	}, nil
}

func (f *fakeTracker) UpdateIssue(_ context.Context, issueKey string, fields map[string]string) (*tracker.Issue, error) {
	f.updates = append(f.updates, fields)
	issue := *f.current
	if summary, ok := fields["summary"]; ok {
		issue.Summary = summary
	}
	return &issue, nil
}

func (f *fakeTracker) GetIssue(_ context.Context, issueKey string) (*tracker.Issue, error) {
	if f.current == nil || f.current.Key != issueKey {
		return nil, &tracker.Error{Kind: tracker.KindNotFound, Op: "get issue", StatusCode: 404}
	}
	return f.current, nil
}

func (f *fakeTracker) SearchIssues(_ context.Context, jql string, _, _ int) ([]tracker.Issue, error) {
	f.searches = append(f.searches, jql)
	return []tracker.Issue{
		{Key: "MBA-1", Summary: "first", IssueType: "Task", Status: "Done", URL: "https://example.atlassian.net/browse/MBA-1"},
		{Key: "MBA-2", Summary: "second", IssueType: "Story", Status: "To Do", URL: "https://example.atlassian.net/browse/MBA-2"},
	}, nil
}

func (f *fakeTracker) AddComment(context.Context, string, string) error        { return nil }
func (f *fakeTracker) ListTransitions(context.Context, string) ([]tracker.Transition, error) {
	return nil, nil
}
func (f *fakeTracker) TransitionIssue(context.Context, string, string) error { return nil }

// fakeForge is both factory and installation client.
type fakeForge struct {
	files          []string
	filesErr       error
	comments       []string
	addedLabels    [][]string
	removedLabels  []string
	commentErr     error
	removeLabelErr error
	installations  []int64
}

func (f *fakeForge) Installation(id int64) forge.Client {
	f.installations = append(f.installations, id)
	return f
}

func (f *fakeForge) ListPullRequestFiles(context.Context, string, int) ([]string, error) {
	return f.files, f.filesErr
}

func (f *fakeForge) CreateComment(_ context.Context, _ string, _ int, body string) error {
	if f.commentErr != nil {
		return f.commentErr
	}
	f.comments = append(f.comments, body)
	return nil
}

func (f *fakeForge) AddLabels(_ context.Context, _ string, _ int, labels []string) error {
	f.addedLabels = append(f.addedLabels, labels)
	return nil
}

func (f *fakeForge) RemoveLabel(_ context.Context, _ string, _ int, label string) error {
	if f.removeLabelErr != nil {
		return f.removeLabelErr
	}
	f.removedLabels = append(f.removedLabels, label)
	return nil
}

func newTestPipeline(t *testing.T, trk tracker.Client, fg *fakeForge, reply string) *service.Pipeline {
	t.Helper()
	prompts, err := prompt.NewBuilder()
	if err != nil {
		t.Fatalf("NewBuilder failed: %v", err)
	}
	metrics, err := jotel.NewMetrics()
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}
	interp := service.NewInterpreter(&fakeCompleter{reply: reply}, "m", 1000)
	return service.NewPipeline(trk, fg, interp, prompts, service.PipelineConfig{
		ProjectKey:   "MBA",
		TriggerLabel: "create-jira-card",
		CreatedLabel: "card-created",
		MaxRuns:      4,
	}, metrics)
}

func labelTrigger() *event.Trigger {
	return &event.Trigger{
		Kind:           event.TriggerLabel,
		InstallationID: 7,
		PullRequest: event.PullRequest{
			Number:     12,
			Title:      "Rework config loader",
			Body:       "Replaces the ad-hoc env parsing.",
			Author:     "octocat",
			Repository: "acme/widgets",
			URL:        "https://github.com/acme/widgets/pull/12",
		},
	}
}

func mentionTrigger(request, issueKey string) *event.Trigger {
	trigger := labelTrigger()
	trigger.Kind = event.TriggerMention
	trigger.Request = request
	trigger.IssueKey = issueKey
	return trigger
}

func TestRunLabelTriggerCreatesCardAndSwapsLabels(t *testing.T) {
	trk := &fakeTracker{}
	fg := &fakeForge{files: []string{"internal/config/loader.go"}}
	p := newTestPipeline(t, trk, fg, `{"summary":"Rework config loader","description":"Track the loader rework.","issue_type":"Task"}`)

	result := p.Run(context.Background(), "run-1", labelTrigger())

	if !result.Success || result.Action != card.ActionCreate {
		t.Fatalf("expected successful create, got %+v", result)
	}
	if result.Issue.Key != "MBA-42" {
		t.Fatalf("expected MBA-42, got %q", result.Issue.Key)
	}
	if len(trk.creates) != 1 || trk.creates[0].ProjectKey != "MBA" {
		t.Fatalf("unexpected create calls: %+v", trk.creates)
	}

	if len(fg.removedLabels) != 1 || fg.removedLabels[0] != "create-jira-card" {
		t.Fatalf("trigger label not removed: %v", fg.removedLabels)
	}
	if len(fg.addedLabels) != 1 || fg.addedLabels[0][0] != "card-created" {
		t.Fatalf("created label not added: %v", fg.addedLabels)
	}

	if len(fg.comments) != 1 {
		t.Fatalf("expected one reply comment, got %d", len(fg.comments))
	}
	reply := fg.comments[0]
	if !strings.Contains(reply, "[MBA-42](https://example.atlassian.net/browse/MBA-42)") {
		t.Fatalf("reply missing issue link:\n%s", reply)
	}
	// The reply must echo the tracker's state, not the model's.
	if !strings.Contains(reply, "Rework config loader (normalized)") {
		t.Fatalf("reply must quote tracker-returned fields:\n%s", reply)
	}

	if len(fg.installations) == 0 || fg.installations[0] != 7 {
		t.Fatalf("forge client not scoped to the delivery's installation: %v", fg.installations)
	}
}

func TestRunMentionCreateScenario(t *testing.T) {
	trk := &fakeTracker{}
	fg := &fakeForge{files: []string{"internal/config/loader.go", "internal/config/loader_test.go"}}

	prompts, err := prompt.NewBuilder()
	if err != nil {
		t.Fatalf("NewBuilder failed: %v", err)
	}
	metrics, err := jotel.NewMetrics()
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}
	completer := &fakeCompleter{reply: `{"action":"create","summary":"Harden the config loader","description":"Cover the remaining edge cases.","issue_type":"Task"}`}
	p := service.NewPipeline(trk, fg, service.NewInterpreter(completer, "m", 1000), prompts, service.PipelineConfig{
		ProjectKey: "MBA", TriggerLabel: "create-jira-card", CreatedLabel: "card-created", MaxRuns: 4,
	}, metrics)

	result := p.Run(context.Background(), "run-1", mentionTrigger("Create a task for hardening the config loader", ""))

	if !result.Success || result.Issue.Key != "MBA-42" {
		t.Fatalf("expected MBA-42 created, got %+v", result)
	}

	if len(completer.requests) != 1 {
		t.Fatalf("expected exactly one model call, got %d", len(completer.requests))
	}
	userTurn := completer.requests[0].User
	for _, want := range []string{
		"Rework config loader",
		"internal/config/loader.go",
		"User Request: Create a task for hardening the config loader",
	} {
		if !strings.Contains(userTurn, want) {
			t.Fatalf("prompt missing %q:\n%s", want, userTurn)
		}
	}

	reply := fg.comments[0]
	if !strings.Contains(reply, "MBA-42") || !strings.Contains(reply, "Harden the config loader (normalized)") {
		t.Fatalf("reply must carry the created key and tracker summary:\n%s", reply)
	}
	if len(fg.removedLabels) != 0 {
		t.Fatal("mention-triggered creates must not touch labels")
	}
}

func TestRunIdenticalTriggersCreateTwoCards(t *testing.T) {
	trk := &fakeTracker{}
	fg := &fakeForge{}
	p := newTestPipeline(t, trk, fg, `{"summary":"same","issue_type":"Task"}`)

	first := p.Run(context.Background(), "run-1", labelTrigger())
	second := p.Run(context.Background(), "run-2", labelTrigger())

	if len(trk.creates) != 2 {
		t.Fatalf("expected 2 creates with no dedup, got %d", len(trk.creates))
	}
	if first.Issue.Key == second.Issue.Key {
		t.Fatalf("expected distinct issues, both got %q", first.Issue.Key)
	}
}

func TestRunMentionWithIssueKeyUpdates(t *testing.T) {
	trk := &fakeTracker{current: &tracker.Issue{
		Key: "MBA-7", Summary: "old", IssueType: "Task", Status: "In Progress",
		URL: "https://example.atlassian.net/browse/MBA-7",
	}}
	fg := &fakeForge{}
	p := newTestPipeline(t, trk, fg, `{"summary":"Config loader rework, phase two"}`)

	result := p.Run(context.Background(), "run-1", mentionTrigger("/ignored: reword MBA-7", "MBA-7"))

	if !result.Success || result.Action != card.ActionUpdate {
		t.Fatalf("expected successful update, got %+v", result)
	}
	if len(trk.updates) != 1 {
		t.Fatalf("expected 1 update, got %d", len(trk.updates))
	}
	if fields := trk.updates[0]; len(fields) != 1 || fields["summary"] == "" {
		t.Fatalf("expected only the summary on the wire, got %v", fields)
	}
	if len(trk.creates) != 0 {
		t.Fatalf("update path must not create, got %d creates", len(trk.creates))
	}
	if !strings.Contains(fg.comments[0], "Updated JIRA issue") {
		t.Fatalf("unexpected reply:\n%s", fg.comments[0])
	}
}

func TestRunUpdateSurvivesFilesListingOutage(t *testing.T) {
	trk := &fakeTracker{current: &tracker.Issue{
		Key: "MBA-7", Summary: "old", IssueType: "Task", Status: "In Progress",
		URL: "https://example.atlassian.net/browse/MBA-7",
	}}
	fg := &fakeForge{filesErr: errors.New("github files API down")}
	p := newTestPipeline(t, trk, fg, `{"summary":"new"}`)

	result := p.Run(context.Background(), "run-1", mentionTrigger("reword MBA-7", "MBA-7"))

	if !result.Success || result.Action != card.ActionUpdate {
		t.Fatalf("update must not depend on the PR file list, got %+v", result)
	}
	if len(trk.updates) != 1 {
		t.Fatalf("expected 1 update, got %d", len(trk.updates))
	}
}

func TestRunMentionQueryFormatsTrackerResults(t *testing.T) {
	trk := &fakeTracker{}
	fg := &fakeForge{}
	p := newTestPipeline(t, trk, fg, `{"action":"query","jql":"project = MBA AND status != Done"}`)

	result := p.Run(context.Background(), "run-1", mentionTrigger("what is still open?", ""))

	if !result.Success || result.Action != card.ActionQuery {
		t.Fatalf("expected successful query, got %+v", result)
	}
	if len(trk.searches) != 1 || trk.searches[0] != "project = MBA AND status != Done" {
		t.Fatalf("unexpected searches: %v", trk.searches)
	}

	reply := fg.comments[0]
	if !strings.Contains(reply, "Found 2 issue(s)") {
		t.Fatalf("unexpected reply:\n%s", reply)
	}
	if !strings.Contains(reply, "[MBA-2](https://example.atlassian.net/browse/MBA-2)") {
		t.Fatalf("reply missing query result:\n%s", reply)
	}
}

func TestRunInterpretationFailurePostsErrorReply(t *testing.T) {
	trk := &fakeTracker{}
	fg := &fakeForge{}
	p := newTestPipeline(t, trk, fg, "Sorry, I cannot help with that.")

	result := p.Run(context.Background(), "run-1", mentionTrigger("create a card", ""))

	if result.Success {
		t.Fatal("expected failed run")
	}
	if len(trk.creates) != 0 || len(trk.updates) != 0 {
		t.Fatal("a failed interpretation must not mutate the tracker")
	}
	if len(fg.comments) != 1 || !strings.Contains(fg.comments[0], "❌") {
		t.Fatalf("expected error reply, got %v", fg.comments)
	}
	if !strings.Contains(fg.comments[0], "interpretation") {
		t.Fatalf("reply must name the failure kind:\n%s", fg.comments[0])
	}
}

func TestRunTrackerFailureReportedWithKind(t *testing.T) {
	trk := &fakeTracker{createErr: &tracker.Error{
		Kind: tracker.KindPermission, Op: "create issue", StatusCode: 403, Body: "forbidden",
	}}
	fg := &fakeForge{}
	p := newTestPipeline(t, trk, fg, `{"summary":"x","issue_type":"Task"}`)

	result := p.Run(context.Background(), "run-1", labelTrigger())

	if result.Success {
		t.Fatal("expected failed run")
	}
	if !strings.Contains(fg.comments[0], "(permission)") {
		t.Fatalf("reply must carry the tracker error kind:\n%s", fg.comments[0])
	}
	if len(fg.removedLabels) != 0 {
		t.Fatal("labels must not be swapped when no card was created")
	}
}

func TestRunReplyPostFailureDoesNotAlterResult(t *testing.T) {
	trk := &fakeTracker{}
	fg := &fakeForge{commentErr: errors.New("comment rejected")}
	p := newTestPipeline(t, trk, fg, `{"summary":"x","issue_type":"Task"}`)

	result := p.Run(context.Background(), "run-1", labelTrigger())

	if !result.Success {
		t.Fatalf("a failed reply post must not mask the committed mutation: %+v", result)
	}
	if len(trk.creates) != 1 {
		t.Fatalf("expected the create to stand, got %d", len(trk.creates))
	}
}

func TestRunLabelSwapFailureIsNonFatal(t *testing.T) {
	trk := &fakeTracker{}
	fg := &fakeForge{removeLabelErr: errors.New("label gone")}
	p := newTestPipeline(t, trk, fg, `{"summary":"x","issue_type":"Task"}`)

	result := p.Run(context.Background(), "run-1", labelTrigger())

	if !result.Success {
		t.Fatalf("label bookkeeping must not fail the run: %+v", result)
	}
	if result.LabelSwapErr == nil {
		t.Fatal("expected the swap failure to be reported")
	}
	if !strings.Contains(fg.comments[0], "updating the PR labels failed") {
		t.Fatalf("reply must mention the label failure:\n%s", fg.comments[0])
	}
}

func TestRunContextExtractionFailureFailsRun(t *testing.T) {
	trk := &fakeTracker{}
	fg := &fakeForge{filesErr: errors.New("github down")}
	p := newTestPipeline(t, trk, fg, `{"summary":"x","issue_type":"Task"}`)

	result := p.Run(context.Background(), "run-1", labelTrigger())

	if result.Success {
		t.Fatal("expected failed run when PR files cannot be fetched")
	}
	if len(trk.creates) != 0 {
		t.Fatal("tracker must stay untouched")
	}
}

func TestDispatchReturnsRunID(t *testing.T) {
	trk := &fakeTracker{}
	fg := &fakeForge{}
	p := newTestPipeline(t, trk, fg, `{"summary":"x","issue_type":"Task"}`)

	runID := p.Dispatch(labelTrigger())
	if runID == "" {
		t.Fatal("expected a run ID")
	}
}
