package tool

import (
	"context"
	"strings"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/herder/pkg/domain/interfaces"
	"github.com/m-mizutani/herder/pkg/domain/types"
)

// CommandBumper runs an external version bump tool. The "{kind}" placeholder
// in its arguments is replaced by the bump kind.
type CommandBumper struct {
	command Command
}

var _ interfaces.VersionBumper = (*CommandBumper)(nil)

// NewCommandBumper creates a bumper running command, e.g. "bump2version {kind}"
func NewCommandBumper(command Command) *CommandBumper {
	return &CommandBumper{command: command}
}

// Bump runs the tool inside projectDir. {kind} and {dir} in the command are
// replaced by the bump kind and projectDir.
func (b *CommandBumper) Bump(ctx context.Context, projectDir string, kind types.BumpKind) error {
	cmd := b.command.expand(strings.NewReplacer("{kind}", string(kind), "{dir}", projectDir))
	if _, err := run(ctx, projectDir, cmd); err != nil {
		return goerr.Wrap(err, "version bump failed", goerr.V("kind", kind))
	}
	return nil
}

// BuiltinBumper rewrites the version file itself: dev bumps advance the
// prerelease counter, patch bumps open x.y.(z+1).dev0
type BuiltinBumper struct {
	versions interfaces.VersionStore
}

var _ interfaces.VersionBumper = (*BuiltinBumper)(nil)

// NewBuiltinBumper creates a bumper working on versions
func NewBuiltinBumper(versions interfaces.VersionStore) *BuiltinBumper {
	return &BuiltinBumper{versions: versions}
}

// Bump applies kind to the version file
func (b *BuiltinBumper) Bump(ctx context.Context, projectDir string, kind types.BumpKind) error {
	current, err := b.versions.Read(projectDir)
	if err != nil {
		return err
	}

	next, err := current.Bump(kind)
	if err != nil {
		return goerr.Wrap(err, "failed to bump version", goerr.T(types.ErrTagExternal))
	}

	if err := b.versions.Write(projectDir, next); err != nil {
		return goerr.Wrap(err, "failed to write version file", goerr.T(types.ErrTagExternal))
	}

	ctxlog.From(ctx).Info("Bumped version",
		"kind", kind,
		"from", current.String(),
		"to", next.String(),
	)
	return nil
}
