package cmd

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/subcommands"
	"golang.org/x/term"

	"github.com/etnz/loandash/dashboard"
	"github.com/etnz/loandash/renderer"
)

type uploadCmd struct {
	month string
}

func (*uploadCmd) Name() string     { return "upload" }
func (*uploadCmd) Synopsis() string { return "upload a LoanLens CSV for a month" }
func (*uploadCmd) Usage() string {
	return `ldash upload [-month <label>] <file.csv>

Uploads a statement export, then shows the refreshed dashboard.
The month label looks like "jan26". Without -month it is asked on the
terminal, and defaults to the current month.
`
}

func (c *uploadCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.month, "month", "", "Month label, like jan26")
}

func (c *uploadCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(stderr, "Error: upload takes exactly one CSV file.")
		return subcommands.ExitUsageError
	}
	name := f.Arg(0)
	file, err := os.Open(name)
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	defer file.Close()

	a, err := newApp()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return subcommands.ExitFailure
	}
	p := a.page(ctx)
	defer p.Close()
	if !p.Open() {
		return subcommands.ExitFailure
	}

	p.Submit(&dashboard.File{Name: filepath.Base(name), Content: file}, c.month)
	if !p.Allowed() {
		return subcommands.ExitFailure
	}
	st := p.Status()
	printMarkdown(renderer.Markdown(renderer.NewView(p.Snapshot()), st))
	if st.Error {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// monthPrompt asks the month label on the terminal. It is nil when stdin is
// not a terminal.
func monthPrompt() dashboard.Prompter {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil
	}
	return dashboard.PrompterFunc(func(ctx context.Context, def string) (string, error) {
		fmt.Fprintf(stderr, "Month label [%s]: ", def)
		return readLine(ctx, os.Stdin)
	})
}

// readLine reads one line from r, giving up when ctx is done. The read itself
// cannot be interrupted and is left behind.
func readLine(ctx context.Context, r io.Reader) (string, error) {
	type result struct {
		line string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		line, err := bufio.NewReader(r).ReadString('\n')
		done <- result{line, err}
	}()
	select {
	case res := <-done:
		return res.line, res.err
	case <-ctx.Done():
		fmt.Fprintln(stderr)
		return "", ctx.Err()
	}
}
