package tool

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/herder/pkg/domain/types"
	"github.com/mattn/go-shellwords"
)

// Command is an external program with its arguments. Arguments may contain
// placeholders expanded at run time.
type Command []string

// ParseCommand splits a command line the way a POSIX shell would, without
// running a shell
func ParseCommand(line string) (Command, error) {
	args, err := shellwords.Parse(line)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid command line", goerr.V("command", line))
	}
	if len(args) == 0 {
		return nil, goerr.New("empty command line")
	}
	return Command(args), nil
}

func (x Command) String() string { return strings.Join(x, " ") }

func (x Command) expand(replacer *strings.Replacer) Command {
	out := make(Command, len(x))
	for i, arg := range x {
		out[i] = replacer.Replace(arg)
	}
	return out
}

// run executes cmd in dir and returns the combined output. The working
// directory is set on the child only.
func run(ctx context.Context, dir string, cmd Command) (string, error) {
	logger := ctxlog.From(ctx)

	if len(cmd) == 0 {
		return "", goerr.New("empty command")
	}

	c := exec.CommandContext(ctx, cmd[0], cmd[1:]...)
	c.Dir = dir

	var out bytes.Buffer
	c.Stdout = &out
	c.Stderr = &out

	logger.Info("Running external tool", "command", cmd.String(), "dir", dir)

	if err := c.Run(); err != nil {
		return out.String(), goerr.Wrap(err, "external tool failed",
			goerr.V("command", cmd.String()),
			goerr.V("dir", dir),
			goerr.V("output", tail(out.String(), 2048)),
			goerr.T(types.ErrTagExternal),
		)
	}

	return out.String(), nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
