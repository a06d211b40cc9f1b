package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	jotel "github.com/mba-tools/jirald/internal/adapter/otel"
	"github.com/mba-tools/jirald/internal/domain/card"
	"github.com/mba-tools/jirald/internal/domain/event"
	"github.com/mba-tools/jirald/internal/logger"
	"github.com/mba-tools/jirald/internal/port/forge"
	"github.com/mba-tools/jirald/internal/port/tracker"
	"github.com/mba-tools/jirald/internal/prompt"
)

// Stage names one step of a pipeline run, for logs and spans.
type Stage string

const (
	StageReceived         Stage = "received"
	StageContextExtracted Stage = "context_extracted"
	StagePromptBuilt      Stage = "prompt_built"
	StageInterpreted      Stage = "interpreted"
	StageTrackerMutated   Stage = "tracker_mutated"
	StageReplyPosted      Stage = "reply_posted"
	StageFailed           Stage = "failed"
)

// searchPageSize caps query results per run.
const searchPageSize = 20

// autoCreateRequest is the synthetic request text for label-triggered runs.
const autoCreateRequest = "Create a card capturing the work this pull request addresses."

// runTimeout bounds one background pipeline run end to end.
const runTimeout = 3 * time.Minute

// PipelineConfig holds the pipeline's tracker and label settings.
type PipelineConfig struct {
	ProjectKey   string
	TriggerLabel string
	CreatedLabel string
	MaxRuns      int64
}

// Pipeline orchestrates one run per triggered event: context extraction,
// one model call, one tracker mutation, one reply. Each step is attempted
// exactly once; there are no retries.
type Pipeline struct {
	tracker tracker.Client
	forge   forge.Factory
	interp  *Interpreter
	prompts *prompt.Builder
	cfg     PipelineConfig
	metrics *jotel.Metrics
	sem     *semaphore.Weighted
}

// NewPipeline creates the orchestrator.
func NewPipeline(trk tracker.Client, fg forge.Factory, interp *Interpreter, prompts *prompt.Builder, cfg PipelineConfig, metrics *jotel.Metrics) *Pipeline {
	maxRuns := cfg.MaxRuns
	if maxRuns < 1 {
		maxRuns = 1
	}
	return &Pipeline{
		tracker: trk,
		forge:   fg,
		interp:  interp,
		prompts: prompts,
		cfg:     cfg,
		metrics: metrics,
		sem:     semaphore.NewWeighted(maxRuns),
	}
}

// Dispatch starts a pipeline run in the background and returns its run ID.
// Runs are bounded by the configured concurrency limit; the webhook handler
// never blocks on downstream services.
func (p *Pipeline) Dispatch(trigger *event.Trigger) string {
	runID := uuid.NewString()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		ctx = logger.WithRunID(ctx, runID)

		if err := p.sem.Acquire(ctx, 1); err != nil {
			slog.Error("run not started", "run_id", runID, "error", err)
			return
		}
		defer p.sem.Release(1)

		p.Run(ctx, runID, trigger)
	}()

	return runID
}

// Run executes the full pipeline for one trigger and returns the result.
// All failures after classification end in a best-effort error reply; a
// failed reply post never masks a committed tracker mutation.
func (p *Pipeline) Run(ctx context.Context, runID string, trigger *event.Trigger) *card.ActionResult {
	start := time.Now()
	ctx, span := jotel.StartRunSpan(ctx, runID, trigger.PullRequest.Repository, trigger.PullRequest.Number, string(trigger.Kind))
	defer span.End()

	p.metrics.RunsStarted.Add(ctx, 1)
	slog.Info("pipeline run started",
		"run_id", runID, "trigger", trigger.Kind,
		"repo", trigger.PullRequest.Repository, "pr", trigger.PullRequest.Number)

	fc := p.forge.Installation(trigger.InstallationID)
	result := p.execute(ctx, fc, trigger)

	p.postReply(ctx, fc, trigger, result)

	elapsed := time.Since(start)
	p.metrics.RunDuration.Record(ctx, elapsed.Seconds())
	if result.Success {
		p.metrics.RunsCompleted.Add(ctx, 1)
		slog.Info("pipeline run completed", "run_id", runID, "action", result.Action, "duration_ms", elapsed.Milliseconds())
	} else {
		p.metrics.RunsFailed.Add(ctx, 1)
		slog.Warn("pipeline run failed", "run_id", runID, "stage", StageFailed, "error", result.Err, "duration_ms", elapsed.Milliseconds())
	}
	return result
}

// execute runs the stages up to and including the tracker mutation. The
// update path grounds the model on the card's current tracker state, not
// the PR diff, so it skips the file fetch entirely.
func (p *Pipeline) execute(ctx context.Context, fc forge.Client, trigger *event.Trigger) *card.ActionResult {
	pr := trigger.PullRequest

	if trigger.Kind == event.TriggerMention && trigger.IssueKey != "" {
		p.logStage(ctx, StageContextExtracted)
		return p.runUpdate(ctx, trigger.Request, trigger.IssueKey)
	}

	// Received -> ContextExtracted: the webhook payload has no file list,
	// so it is fetched here. Files are model grounding only.
	files, err := fc.ListPullRequestFiles(ctx, pr.Repository, pr.Number)
	if err != nil {
		return failed(card.ActionCreate, fmt.Errorf("extract context: %w", err))
	}
	pr.ChangedFiles = files
	p.logStage(ctx, StageContextExtracted)

	if trigger.Kind == event.TriggerLabel {
		return p.runCreate(ctx, autoCreateRequest, pr, fc, trigger)
	}
	return p.runIntent(ctx, trigger.Request, pr)
}

// runCreate handles the create path: one model call, one tracker create.
// For label triggers it also swaps the PR labels afterwards; that
// bookkeeping is non-fatal because the card already exists.
func (p *Pipeline) runCreate(ctx context.Context, request string, pr event.PullRequest, fc forge.Client, trigger *event.Trigger) *card.ActionResult {
	payload := p.prompts.Create(request, pr)
	p.logStage(ctx, StagePromptBuilt)

	intent, err := p.interpretCreate(ctx, payload)
	if err != nil {
		return failed(card.ActionCreate, err)
	}
	p.logStage(ctx, StageInterpreted)

	issue, err := p.tracker.CreateIssue(ctx, tracker.CreateRequest{
		ProjectKey:  p.cfg.ProjectKey,
		Summary:     intent.Summary,
		IssueType:   intent.IssueType,
		Description: intent.Description,
	})
	if err != nil {
		return failed(card.ActionCreate, err)
	}
	p.logStage(ctx, StageTrackerMutated)

	result := &card.ActionResult{Success: true, Action: card.ActionCreate, Issue: issue}
	if trigger.Kind == event.TriggerLabel {
		result.LabelSwapErr = p.swapLabels(ctx, fc, pr)
	}
	return result
}

// runUpdate handles a mention that names an existing card: fetch its current
// state, one model call for the sparse field set, one tracker update.
func (p *Pipeline) runUpdate(ctx context.Context, request, issueKey string) *card.ActionResult {
	current, err := p.tracker.GetIssue(ctx, issueKey)
	if err != nil {
		return failed(card.ActionUpdate, err)
	}

	payload := p.prompts.Update(request, current)
	p.logStage(ctx, StagePromptBuilt)

	intent, err := p.interpretUpdate(ctx, payload, issueKey)
	if err != nil {
		return failed(card.ActionUpdate, err)
	}
	p.logStage(ctx, StageInterpreted)

	// Only the fields the intent sets reach the wire; everything else is
	// left untouched on the tracker.
	issue, err := p.tracker.UpdateIssue(ctx, issueKey, intent.Fields())
	if err != nil {
		return failed(card.ActionUpdate, err)
	}
	p.logStage(ctx, StageTrackerMutated)

	return &card.ActionResult{Success: true, Action: card.ActionUpdate, Issue: issue}
}

// runIntent handles a free-form mention: one model call decides between
// create and query and carries the full payload.
func (p *Pipeline) runIntent(ctx context.Context, request string, pr event.PullRequest) *card.ActionResult {
	payload := p.prompts.Intent(request, pr)
	p.logStage(ctx, StagePromptBuilt)

	intent, err := p.interpretIntent(ctx, payload)
	if err != nil {
		return failed(card.ActionCreate, err)
	}
	p.logStage(ctx, StageInterpreted)

	switch intent.Action {
	case card.ActionCreate:
		issue, err := p.tracker.CreateIssue(ctx, tracker.CreateRequest{
			ProjectKey:  p.cfg.ProjectKey,
			Summary:     intent.Create.Summary,
			IssueType:   intent.Create.IssueType,
			Description: intent.Create.Description,
		})
		if err != nil {
			return failed(card.ActionCreate, err)
		}
		p.logStage(ctx, StageTrackerMutated)
		return &card.ActionResult{Success: true, Action: card.ActionCreate, Issue: issue}

	case card.ActionQuery:
		issues, err := p.tracker.SearchIssues(ctx, intent.Query.JQL, searchPageSize, 0)
		if err != nil {
			return failed(card.ActionQuery, err)
		}
		p.logStage(ctx, StageTrackerMutated)
		return &card.ActionResult{Success: true, Action: card.ActionQuery, Issues: issues}

	default:
		return failed(intent.Action, &InterpretationError{Reason: fmt.Sprintf("unsupported action %q", intent.Action)})
	}
}

// swapLabels removes the trigger label and adds the created label after a
// successful auto-create.
func (p *Pipeline) swapLabels(ctx context.Context, fc forge.Client, pr event.PullRequest) error {
	if err := fc.RemoveLabel(ctx, pr.Repository, pr.Number, p.cfg.TriggerLabel); err != nil {
		return fmt.Errorf("remove trigger label: %w", err)
	}
	if err := fc.AddLabels(ctx, pr.Repository, pr.Number, []string{p.cfg.CreatedLabel}); err != nil {
		return fmt.Errorf("add created label: %w", err)
	}
	return nil
}

// postReply formats the result and posts it on the PR thread. Posting is
// best-effort: its failure is logged, not retried, and never overwrites the
// run's outcome.
func (p *Pipeline) postReply(ctx context.Context, fc forge.Client, trigger *event.Trigger, result *card.ActionResult) {
	reply := FormatReply(result)
	pr := trigger.PullRequest

	if err := fc.CreateComment(ctx, pr.Repository, pr.Number, reply); err != nil {
		slog.Error("reply post failed",
			"run_id", logger.RunID(ctx), "repo", pr.Repository, "pr", pr.Number, "error", err)
		return
	}
	p.metrics.RepliesPosted.Add(ctx, 1)
	p.logStage(ctx, StageReplyPosted)
}

func (p *Pipeline) interpretCreate(ctx context.Context, payload prompt.Payload) (*card.CreateIntent, error) {
	p.metrics.ModelCalls.Add(ctx, 1)
	ctx, span := jotel.StartStageSpan(ctx, string(StageInterpreted))
	defer span.End()
	return p.interp.InterpretCreate(ctx, payload)
}

func (p *Pipeline) interpretUpdate(ctx context.Context, payload prompt.Payload, issueKey string) (*card.UpdateIntent, error) {
	p.metrics.ModelCalls.Add(ctx, 1)
	ctx, span := jotel.StartStageSpan(ctx, string(StageInterpreted))
	defer span.End()
	return p.interp.InterpretUpdate(ctx, payload, issueKey)
}

func (p *Pipeline) interpretIntent(ctx context.Context, payload prompt.Payload) (*card.Intent, error) {
	p.metrics.ModelCalls.Add(ctx, 1)
	ctx, span := jotel.StartStageSpan(ctx, string(StageInterpreted))
	defer span.End()
	return p.interp.InterpretIntent(ctx, payload)
}

func (p *Pipeline) logStage(ctx context.Context, stage Stage) {
	slog.Debug("pipeline stage", "run_id", logger.RunID(ctx), "stage", stage)
}

func failed(action card.Action, err error) *card.ActionResult {
	return &card.ActionResult{Success: false, Action: action, Err: err}
}
