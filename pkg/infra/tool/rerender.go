package tool

import (
	"context"
	"regexp"
	"strings"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/herder/pkg/domain/interfaces"
)

// DefaultRerenderCommand regenerates a conda-forge style feedstock
const DefaultRerenderCommand = "conda smithy rerender --no-check-uptodate"

// suggestedCommit matches the line in which the packaging tool suggests a commit,
// e.g. `git commit -m "MNT: Re-rendered with conda-build 3.21.4"`
var suggestedCommit = regexp.MustCompile(`(?m)commit\b[^"\n]*"([^"\n]+)"`)

// Rerenderer runs the packaging tool against a feedstock working copy
type Rerenderer struct {
	command Command
}

var _ interfaces.Rerenderer = (*Rerenderer)(nil)

// NewRerenderer creates a rerenderer running command
func NewRerenderer(command Command) *Rerenderer {
	return &Rerenderer{command: command}
}

// Rerender runs the tool inside feedstockDir, with {dir} in the command
// replaced by that path, and extracts the suggested commit message, if any
func (r *Rerenderer) Rerender(ctx context.Context, feedstockDir string) (*interfaces.RerenderResult, error) {
	cmd := r.command.expand(strings.NewReplacer("{dir}", feedstockDir))
	out, err := run(ctx, feedstockDir, cmd)
	if err != nil {
		return nil, goerr.Wrap(err, "rerender failed")
	}

	result := &interfaces.RerenderResult{
		CommitMessage: ExtractCommitMessage(out),
		Output:        out,
	}

	if result.CommitMessage == "" {
		ctxlog.From(ctx).Info("Rerender produced no changes, feedstock already up to date", "dir", feedstockDir)
	}

	return result, nil
}

// ExtractCommitMessage returns the first quoted commit message suggested in
// output, or "" when there is none
func ExtractCommitMessage(output string) string {
	m := suggestedCommit.FindStringSubmatch(output)
	if m == nil {
		return ""
	}
	return m[1]
}
