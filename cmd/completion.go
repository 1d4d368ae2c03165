package cmd

import (
	"flag"

	"github.com/google/subcommands"
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"

	"github.com/etnz/loandash/docs"
)

// Complete answers a shell completion request for the commands registered on
// c, and does nothing otherwise. Install with COMP_INSTALL=1 ldash.
func Complete(c *subcommands.Commander, topFlags *flag.FlagSet) {
	completionCommand(c, topFlags).Complete("ldash")
}

func completionCommand(c *subcommands.Commander, topFlags *flag.FlagSet) *complete.Command {
	root := &complete.Command{
		Sub:   map[string]*complete.Command{},
		Flags: flagPredictors(topFlags),
	}
	c.VisitCommands(func(_ *subcommands.CommandGroup, cmd subcommands.Command) {
		fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
		cmd.SetFlags(fs)
		root.Sub[cmd.Name()] = &complete.Command{
			Flags: flagPredictors(fs),
			Args:  argsPredictor(cmd.Name()),
		}
	})
	return root
}

func flagPredictors(fs *flag.FlagSet) map[string]complete.Predictor {
	flags := map[string]complete.Predictor{}
	fs.VisitAll(func(f *flag.Flag) {
		if b, ok := f.Value.(interface{ IsBoolFlag() bool }); ok && b.IsBoolFlag() {
			flags[f.Name] = predict.Nothing
			return
		}
		switch f.Name {
		case "config":
			flags[f.Name] = predict.Files("*.yaml")
		case "session-file", "o":
			flags[f.Name] = predict.Files("*")
		default:
			flags[f.Name] = predict.Something
		}
	})
	return flags
}

func argsPredictor(name string) complete.Predictor {
	switch name {
	case "upload":
		return predict.Files("*.csv")
	case "ots":
		return predict.Set{"list", "get"}
	case "topic":
		topics, err := docs.GetAllTopics()
		if err != nil {
			return predict.Nothing
		}
		return predict.Set(topics)
	}
	return predict.Nothing
}
