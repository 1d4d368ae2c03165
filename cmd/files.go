package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"

	"github.com/etnz/loandash/dashboard"
)

type otsCmd struct {
	output string
}

func (*otsCmd) Name() string     { return "ots" }
func (*otsCmd) Synopsis() string { return "list or download the settlement letters" }
func (*otsCmd) Usage() string {
	return `ldash ots list
ldash ots get [-o <file>] <name>

Commands:
  list   prints the names of the one-time settlement letters
  get    downloads one letter, to <name> unless -o is given ("-" is stdout)
`
}

func (c *otsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.output, "o", "", "Output file for get")
}

func (c *otsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprint(stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	a, err := newApp()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return subcommands.ExitFailure
	}
	g, ok := a.gate(ctx)
	if !ok {
		return subcommands.ExitFailure
	}
	token := a.store.Get().Token

	switch f.Arg(0) {
	case "list":
		names, err := a.client.ListOTSLetters(ctx, token)
		if err != nil {
			return a.fail(g, err)
		}
		if len(names) == 0 {
			fmt.Fprintln(stdout, "No settlement letters.")
		}
		for _, n := range names {
			fmt.Fprintln(stdout, n)
		}
		return subcommands.ExitSuccess
	case "get":
		if f.NArg() != 2 {
			fmt.Fprint(stderr, c.Usage())
			return subcommands.ExitUsageError
		}
		name := f.Arg(1)
		out := c.output
		if out == "" {
			out = name
		}
		return a.save(g, out, func(w io.Writer) error {
			return a.client.DownloadOTSLetter(ctx, token, name, w)
		})
	default:
		fmt.Fprintf(stderr, "Error: unknown ots command %q.\n", f.Arg(0))
		return subcommands.ExitUsageError
	}
}

type projectionCmd struct {
	output string
}

func (*projectionCmd) Name() string     { return "projection" }
func (*projectionCmd) Synopsis() string { return "download the payment projection of a month" }
func (*projectionCmd) Usage() string {
	return `ldash projection [-o <file>] <month>

Downloads the spreadsheet projection generated for a month label, to
projection_<month>.xlsx unless -o is given ("-" is stdout).
`
}

func (c *projectionCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.output, "o", "", "Output file")
}

func (c *projectionCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprint(stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	month := f.Arg(0)
	a, err := newApp()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return subcommands.ExitFailure
	}
	g, ok := a.gate(ctx)
	if !ok {
		return subcommands.ExitFailure
	}
	out := c.output
	if out == "" {
		out = "projection_" + month + ".xlsx"
	}
	token := a.store.Get().Token
	return a.save(g, out, func(w io.Writer) error {
		return a.client.DownloadProjection(ctx, token, month, w)
	})
}

// save writes what download produces to path, or to stdout for "-". A
// partial file is removed.
func (a *app) save(g *dashboard.Gate, path string, download func(io.Writer) error) subcommands.ExitStatus {
	if path == "-" {
		if err := download(stdout); err != nil {
			return a.fail(g, err)
		}
		return subcommands.ExitSuccess
	}
	f, err := os.Create(path)
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	err = download(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return a.fail(g, err)
	}
	fmt.Fprintf(stderr, "Saved %s\n", path)
	return subcommands.ExitSuccess
}
