package cmds

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/go-delve/tdbg/cmd/tdbg/cmds/helphelpers"
	"github.com/go-delve/tdbg/pkg/config"
	"github.com/go-delve/tdbg/pkg/logflags"
	"github.com/go-delve/tdbg/pkg/proc/native"
	"github.com/go-delve/tdbg/pkg/terminal"
	"github.com/go-delve/tdbg/pkg/version"
)

var (
	// log is whether to log debug statements.
	log bool
	// logOutput is a comma separated list of components that should produce debug output.
	logOutput string
	// logDest is the file path or file descriptor where logs should go.
	logDest string
	// initFile is the path to initialization file.
	initFile string
	// workingDir is the working directory for running the program.
	workingDir string
	// tty is used to provide an alternate TTY for the program you wish to debug.
	tty string

	// rootCommand is the root of the command tree.
	rootCommand *cobra.Command

	conf *config.Config
)

const tdbgCommandLongDesc = `tdbg is a minimal debugger for Linux x86-64 executables.

tdbg starts the program under ptrace, stops it before its first instruction and
reads commands from standard input. It can resume the program until the next
breakpoint, signal or system call, single step it, print its registers and
memory, and set one-shot software breakpoints at raw addresses.

Type 'help' at the prompt for the list of commands.`

// New returns an initialized command tree.
func New() *cobra.Command {
	// Config setup and load.
	conf = config.LoadConfig()

	// Main tdbg root command.
	rootCommand = &cobra.Command{
		Use:   "tdbg [flags] <program>",
		Short: "tdbg is a minimal ptrace debugger.",
		Long:  tdbgCommandLongDesc,
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			os.Exit(execute(args, conf))
		},
	}

	rootCommand.PersistentFlags().BoolVarP(&log, "log", "", false, "Enable debugger logging.")
	rootCommand.PersistentFlags().StringVarP(&logOutput, "log-output", "", "", `Comma separated list of components that should produce debug output (see 'tdbg help log')`)
	rootCommand.PersistentFlags().StringVarP(&logDest, "log-dest", "", "", "Writes logs to the specified file or file descriptor (see 'tdbg help log').")
	rootCommand.PersistentFlags().StringVar(&initFile, "init", "", "Init file, executed by the terminal before the first prompt.")
	rootCommand.PersistentFlags().StringVar(&workingDir, "wd", "", "Working directory for running the program.")
	rootCommand.PersistentFlags().StringVarP(&tty, "tty", "t", "", "TTY to use for the target program")

	// 'version' subcommand.
	versionCommand := &cobra.Command{
		Use:   "version",
		Short: "Prints version.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tdbg Debugger\n%s\n", version.TdbgVersion)
			if log {
				fmt.Fprintln(cmd.OutOrStdout(), version.BuildInfo())
			}
		},
	}
	rootCommand.AddCommand(versionCommand)

	rootCommand.AddCommand(&cobra.Command{
		Use:   "log",
		Short: "Help about logging flags.",
		Long: `Logging can be enabled by specifying the --log flag and using the
--log-output flag to select which components should produce logs.

The argument of --log-output must be a comma separated list of component
names selected from this list:


	debugger	Log session level events (defaults to this if no component is given)
	ptrace		Log every ptrace request and wait status
	breakpoints	Log breakpoint installation, hits and removal

Additionally --log-dest can be used to specify where the logs should be
written.
If the argument is a number it will be interpreted as a file descriptor,
otherwise as a file path.
`,
	})

	defaultHelp := rootCommand.HelpFunc()
	rootCommand.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		helphelpers.Prepare(cmd)
		defaultHelp(cmd, args)
	})

	rootCommand.DisableAutoGenTag = true

	return rootCommand
}

// execute runs a debugging session on processArgs and returns the exit
// status of tdbg.
func execute(processArgs []string, conf *config.Config) int {
	if err := logflags.Setup(log, logOutput, logDest); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer logflags.Close()

	target, err := native.Launch(processArgs, workingDir, tty)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("Child pid: %d\n", target.Pid())

	if _, err := target.WaitForStop(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		target.Detach(true)
		return 1
	}
	logflags.DebuggerLogger().Debugf("process %d stopped at first instruction", target.Pid())

	term := terminal.New(target, conf)
	term.InitFile = initFile
	status, err := term.Run()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	return status
}
