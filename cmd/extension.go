package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"

	"github.com/etnz/loandash/config"
)

// EnvVerbose tells an extension that -v was given. The other global flags
// are passed with the variables config reads.
const EnvVerbose = "LDASH_VERBOSE"

// RunExtension attempts to find and execute an external ldash-<subcommand> binary.
// It returns (true, exitCode) if an extension was found and executed,
// and (false, 0) if no extension was found.
func RunExtension(subcommand string, args []string) (bool, int) {
	return runExtension(subcommand, args, os.Stdin, os.Stdout, os.Stderr)
}

func runExtension(subcommand string, args []string, in io.Reader, out, errOut io.Writer) (bool, int) {
	externalCmdName := "ldash-" + subcommand

	lp, err := exec.LookPath(externalCmdName)
	if err != nil {
		return false, 0
	}

	cmd := exec.Command(lp, args...)
	cmd.Stdin = in
	cmd.Stdout = out
	cmd.Stderr = errOut

	// Pass global flags as environment variables
	cmd.Env = os.Environ()
	if *configPath != "" {
		cmd.Env = append(cmd.Env, config.EnvConfig+"="+*configPath)
	}
	if *backendURL != "" {
		cmd.Env = append(cmd.Env, config.EnvBackendURL+"="+*backendURL)
	}
	if *sessionFile != "" {
		cmd.Env = append(cmd.Env, config.EnvSessionFile+"="+*sessionFile)
	}
	if *publicMode {
		cmd.Env = append(cmd.Env, config.EnvPublic+"=true")
	}
	cmd.Env = append(cmd.Env, EnvVerbose+"="+strconv.FormatBool(*Verbose))

	if err := cmd.Run(); err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			return true, exitError.ExitCode()
		}
		fmt.Fprintf(errOut, "Error executing external command %q: %v\n", externalCmdName, err)
		return true, 1
	}
	return true, 0
}
