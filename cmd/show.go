package cmd

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"

	"github.com/etnz/loandash/renderer"
)

type showCmd struct {
	exact bool
	json  bool
	loans bool
}

func (*showCmd) Name() string     { return "show" }
func (*showCmd) Synopsis() string { return "display the portfolio dashboard" }
func (*showCmd) Usage() string {
	return `ldash show [-exact] [-loans] [-json]

Displays the portfolio overview and the loan details. Amounts are shown in
lakhs ("Rs 2.50L") and EMIs in thousands ("Rs 45k") unless -exact is given.
`
}

func (c *showCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.exact, "exact", false, "Show amounts in full rupees")
	f.BoolVar(&c.loans, "loans", false, "Show only the loan table")
	f.BoolVar(&c.json, "json", false, "Print the masters document as JSON")
}

func (c *showCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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
	st := p.Status()
	snapshot := p.Snapshot()

	if c.json {
		if snapshot == nil {
			fmt.Fprintln(stderr, st.Message)
			return subcommands.ExitFailure
		}
		data, err := snapshot.MarshalJSON()
		if err != nil {
			fmt.Fprintln(stderr, "Error:", err)
			return subcommands.ExitFailure
		}
		fmt.Fprintln(stdout, string(data))
		return subcommands.ExitSuccess
	}

	view := renderer.NewView(snapshot)
	if c.exact {
		view = renderer.NewExactView(snapshot)
	}
	if c.loans {
		printMarkdown(renderer.LoansMarkdown(view))
	} else {
		printMarkdown(renderer.Markdown(view, st))
	}
	if st.Error {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
