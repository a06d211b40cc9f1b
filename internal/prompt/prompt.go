// Package prompt assembles the system instruction and user turn sent to the
// hosted model. The policy text lives in embedded markdown templates; the
// caller cannot override it.
package prompt

import (
	"embed"
	"fmt"
	"strings"

	"github.com/mba-tools/jirald/internal/domain/event"
	"github.com/mba-tools/jirald/internal/port/tracker"
)

//go:embed templates/*.md
var templates embed.FS

// Payload is one assembled model call: a fixed system instruction plus a
// user turn carrying serialized context and the literal request text.
type Payload struct {
	System string
	User   string
}

// Builder assembles prompts from the embedded policy templates.
type Builder struct {
	createSystem string
	updateSystem string
	intentSystem string
}

// NewBuilder loads the embedded templates.
func NewBuilder() (*Builder, error) {
	create, err := loadTemplate("card_create.md")
	if err != nil {
		return nil, err
	}
	update, err := loadTemplate("card_update.md")
	if err != nil {
		return nil, err
	}
	intent, err := loadTemplate("intent.md")
	if err != nil {
		return nil, err
	}
	return &Builder{createSystem: create, updateSystem: update, intentSystem: intent}, nil
}

// loadTemplate reads a template and strips markdown headers and code fences,
// leaving the instruction text.
func loadTemplate(name string) (string, error) {
	data, err := templates.ReadFile("templates/" + name)
	if err != nil {
		return "", fmt.Errorf("load prompt template %s: %w", name, err)
	}

	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "#") || strings.HasPrefix(line, "```") {
			continue
		}
		lines = append(lines, line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}

// Create builds the card-creation prompt from the user request and PR
// context.
func (b *Builder) Create(userRequest string, pr event.PullRequest) Payload {
	return Payload{System: b.createSystem, User: serializePR(userRequest, pr)}
}

// Update builds the card-update prompt from the user request and the current
// tracker state of the card.
func (b *Builder) Update(userRequest string, current *tracker.Issue) Payload {
	var sb strings.Builder
	sb.WriteString("Current Card:\n")
	fmt.Fprintf(&sb, "- Key: %s\n", current.Key)
	fmt.Fprintf(&sb, "- Summary: %s\n", current.Summary)
	fmt.Fprintf(&sb, "- Type: %s\n", current.IssueType)
	fmt.Fprintf(&sb, "- Status: %s\n", current.Status)
	fmt.Fprintf(&sb, "\nCurrent Description:\n%s\n", current.Description)
	fmt.Fprintf(&sb, "\nUser Request: %s\n", userRequest)

	return Payload{System: b.updateSystem, User: sb.String()}
}

// Intent builds the action-analysis prompt for a free-form request.
func (b *Builder) Intent(userRequest string, pr event.PullRequest) Payload {
	return Payload{System: b.intentSystem, User: serializePR(userRequest, pr)}
}

// maxListedFiles caps the changed-file list serialized into the user turn.
const maxListedFiles = 10

// serializePR renders the PR context block the way the card templates expect
// it: metadata first, then the description, then the literal request.
func serializePR(userRequest string, pr event.PullRequest) string {
	var sb strings.Builder
	sb.WriteString("PR Context:\n")
	fmt.Fprintf(&sb, "- Title: %s\n", pr.Title)
	fmt.Fprintf(&sb, "- Author: %s\n", pr.Author)
	fmt.Fprintf(&sb, "- Repository: %s\n", pr.Repository)
	fmt.Fprintf(&sb, "- Branch: %s -> %s\n", pr.HeadBranch, pr.BaseBranch)
	fmt.Fprintf(&sb, "- Files changed: %d files\n", len(pr.ChangedFiles))
	fmt.Fprintf(&sb, "- Changes: +%d -%d lines\n", pr.Additions, pr.Deletions)
	fmt.Fprintf(&sb, "- URL: %s\n", pr.URL)

	fmt.Fprintf(&sb, "\nPR Description:\n%s\n", pr.Body)

	files := pr.ChangedFiles
	suffix := ""
	if len(files) > maxListedFiles {
		files = files[:maxListedFiles]
		suffix = "..."
	}
	fmt.Fprintf(&sb, "\nFiles Changed:\n%s%s\n", strings.Join(files, ", "), suffix)

	fmt.Fprintf(&sb, "\nUser Request: %s\n", userRequest)
	return sb.String()
}
