package prompt

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
)

// Confirmer asks a yes/no question on a terminal. Anything but "y" or "yes"
// is a no.
type Confirmer struct {
	in  io.Reader
	out io.Writer
}

// Option configures Confirmer
type Option func(*Confirmer)

// WithIO replaces stdin and stdout
func WithIO(in io.Reader, out io.Writer) Option {
	return func(c *Confirmer) {
		c.in = in
		c.out = out
	}
}

// New creates a Confirmer on stdin and stdout
func New(opts ...Option) *Confirmer {
	c := &Confirmer{in: os.Stdin, out: os.Stdout}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Confirm prints question and waits for an answer or ctx to end
func (c *Confirmer) Confirm(ctx context.Context, question string) (bool, error) {
	yellow := color.New(color.FgYellow, color.Bold)
	if _, err := yellow.Fprintf(c.out, "%s [y/N]: ", question); err != nil {
		return false, goerr.Wrap(err, "failed to write prompt")
	}

	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := bufio.NewReader(c.in).ReadString('\n')
		ch <- result{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return false, goerr.Wrap(ctx.Err(), "confirmation interrupted")
	case r := <-ch:
		if r.err != nil && r.err != io.EOF {
			return false, goerr.Wrap(r.err, "failed to read answer")
		}
		switch strings.ToLower(strings.TrimSpace(r.line)) {
		case "y", "yes":
			return true, nil
		default:
			_, _ = color.New(color.FgRed).Fprintln(c.out, "Aborted by operator")
			return false, nil
		}
	}
}
