package cmds

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"

	"github.com/cosiner/argv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/go-delve/vsattach/cmd/vsattach/cmds/helphelpers"
	"github.com/go-delve/vsattach/pkg/config"
	"github.com/go-delve/vsattach/pkg/debuginfo"
	"github.com/go-delve/vsattach/pkg/logflags"
	"github.com/go-delve/vsattach/pkg/provider"
	"github.com/go-delve/vsattach/pkg/provider/vs"
	"github.com/go-delve/vsattach/pkg/version"
)

var (
	// log is whether to log debug statements.
	log bool
	// logOutput is a comma separated list of components that should produce debug output.
	logOutput string
	// logDest is the file path or file descriptor where logs should go.
	logDest string
	// configPath overrides the location of the configuration file.
	configPath string

	// format selects how debugger identities are printed.
	format = formatText
	// debuggerPID selects the debugger host by process id.
	debuggerPID int
	// debuggerInfo selects the debugger by its external representation.
	debuggerInfo string
	// cmdline is the command line of the program started by exec.
	cmdline string

	rootCommand *cobra.Command
)

const vsattachCommandLongDesc = `vsattach finds the Visual Studio instance debugging a process and asks
it to attach to other processes.

A Visual Studio instance is identified by its process id. It is discovered by
walking the ancestry of a process looking for devenv, and attached through the
automation object it publishes in the COM running object table.

Discovery and attachment are only available on Windows.`

// New returns an initialized command tree.
func New(docCall bool) *cobra.Command {
	// Main vsattach root command.
	rootCommand = &cobra.Command{
		Use:   "vsattach",
		Short: "vsattach attaches processes to the Visual Studio debugger.",
		Long:  vsattachCommandLongDesc,
	}

	rootCommand.PersistentFlags().BoolVarP(&log, "log", "", false, "Enable logging.")
	rootCommand.PersistentFlags().StringVarP(&logOutput, "log-output", "", "", `Comma separated list of components that should produce debug output (see 'vsattach help log')`)
	rootCommand.PersistentFlags().StringVarP(&logDest, "log-dest", "", "", "Writes logs to the specified file or file descriptor (see 'vsattach help log').")
	rootCommand.PersistentFlags().StringVar(&configPath, "config", "", "Configuration file, defaults to ~/.vsattach/config.yml.")

	// 'info' subcommand.
	infoCommand := &cobra.Command{
		Use:   "info",
		Short: "Prints the debugger attached to vsattach.",
		Long: `Prints the identity of the debugger attached to the vsattach process.

Nothing is found unless vsattach itself runs under a debugger, for example
when it is started from a Visual Studio debugging session.`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			os.Exit(execute(cmd.OutOrStdout(), infoCmd))
		},
	}
	infoCommand.Flags().VarP(&format, "format", "f", "Output format: text, json or yaml.")
	rootCommand.AddCommand(infoCommand)

	// 'find' subcommand.
	findCommand := &cobra.Command{
		Use:   "find pid",
		Short: "Finds the Visual Studio instance among the ancestors of a process.",
		Long: `Finds the closest Visual Studio instance among the ancestors of a process,
the process itself included.`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			pid, err := parsePid(args[0])
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			os.Exit(execute(cmd.OutOrStdout(), func(out io.Writer, reg *provider.Registry, p *vs.Provider) error {
				return findCmd(out, p, pid)
			}))
		},
	}
	findCommand.Flags().VarP(&format, "format", "f", "Output format: text, json or yaml.")
	rootCommand.AddCommand(findCommand)

	// 'attach' subcommand.
	attachCommand := &cobra.Command{
		Use:   "attach pid",
		Short: "Attaches a running process to a debugger.",
		Long: `Attaches a running process to a debugger.

The debugger is selected with --debugger or --debugger-info. Without either
flag the debugger attached to vsattach is used.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return errors.New("you must provide a PID")
			}
			return checkDebuggerFlags()
		},
		Run: func(cmd *cobra.Command, args []string) {
			pid, err := parsePid(args[0])
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			os.Exit(execute(cmd.OutOrStdout(), func(out io.Writer, reg *provider.Registry, p *vs.Provider) error {
				return attachCmd(out, reg, pid)
			}))
		},
	}
	addDebuggerFlags(attachCommand)
	rootCommand.AddCommand(attachCommand)

	// 'exec' subcommand.
	execCommand := &cobra.Command{
		Use:   "exec [--cmdline string] [-- program args...]",
		Short: "Starts a program and attaches it to a debugger.",
		Long: `Starts a program and attaches it to a debugger.

The program is given either after '--' or as a single string with --cmdline,
which is split following the quoting rules of the shell. The debugger is
selected as in 'vsattach attach'. vsattach waits for the program to exit and
exits with its status.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return checkDebuggerFlags()
		},
		Run: func(cmd *cobra.Command, args []string) {
			processArgs, err := programArgs(cmd, args)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			var status int
			code := execute(cmd.OutOrStdout(), func(out io.Writer, reg *provider.Registry, p *vs.Provider) error {
				var err error
				status, err = execCmd(out, reg, processArgs)
				return err
			})
			if code != 0 {
				os.Exit(code)
			}
			os.Exit(status)
		},
	}
	addDebuggerFlags(execCommand)
	execCommand.Flags().StringVar(&cmdline, "cmdline", "", "Command line of the program.")
	rootCommand.AddCommand(execCommand)

	// 'config' subcommand.
	var saveConfig = false
	configCommand := &cobra.Command{
		Use:   "config",
		Short: "Prints the effective configuration.",
		Long: `Prints the configuration used by the other commands, with every unset
option replaced by its default value.

With --save the configuration is also written back to the configuration file,
making the defaults explicit.`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			conf, err := loadConfig()
			if err == nil {
				err = configCmd(cmd.OutOrStdout(), conf, saveConfig)
			}
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
		},
	}
	configCommand.Flags().BoolVar(&saveConfig, "save", false, "Write the effective configuration to the configuration file.")
	rootCommand.AddCommand(configCommand)

	// 'version' subcommand.
	var versionVerbose = false
	versionCommand := &cobra.Command{
		Use:   "version",
		Short: "Prints version.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "vsattach\n%s\n", version.VsattachVersion)
			if versionVerbose {
				fmt.Fprintf(cmd.OutOrStdout(), "Build Details: %s\n", version.BuildInfo())
			}
		},
	}
	versionCommand.Flags().BoolVarP(&versionVerbose, "verbose", "v", false, "print verbose version info")
	rootCommand.AddCommand(versionCommand)

	rootCommand.AddCommand(&cobra.Command{
		Use:   "log",
		Short: "Help about logging flags.",
		Long: `Logging can be enabled by specifying the --log flag and using the
--log-output flag to select which components should produce logs.

The argument of --log-output must be a comma separated list of component
names selected from this list:


	provider	Log provider dispatch (default)
	rot		Log the running object table scan
	automation	Log calls to the debugger's automation object
	proctree	Log the process ancestry walk

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

func addDebuggerFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&debuggerPID, "debugger", 0, "Process id of the Visual Studio instance.")
	cmd.Flags().StringVar(&debuggerInfo, "debugger-info", "", `Debugger identity, as printed by 'vsattach info --format json'.`)
}

func checkDebuggerFlags() error {
	if debuggerPID != 0 && debuggerInfo != "" {
		return errors.New("--debugger and --debugger-info are mutually exclusive")
	}
	if debuggerPID < 0 {
		return fmt.Errorf("invalid debugger pid %d", debuggerPID)
	}
	return nil
}

func parsePid(s string) (int, error) {
	pid, err := strconv.Atoi(s)
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid: %s", s)
	}
	return pid, nil
}

// programArgs returns the program to start, either the arguments after
// '--' or the split --cmdline.
func programArgs(cmd *cobra.Command, args []string) ([]string, error) {
	if cmdline != "" {
		if len(args) > 0 {
			return nil, errors.New("--cmdline cannot be used together with a program after '--'")
		}
		return splitCmdline(cmdline)
	}
	if cmd.ArgsLenAtDash() >= 0 {
		args = args[cmd.ArgsLenAtDash():]
	}
	if len(args) == 0 {
		return nil, errors.New("you must provide a program to start")
	}
	return args, nil
}

func splitCmdline(s string) ([]string, error) {
	v, err := argv.Argv(s,
		func(s string) (string, error) {
			return "", fmt.Errorf("Backtick not supported in '%s'", s)
		},
		nil)
	if err != nil {
		return nil, err
	}
	if len(v) != 1 || len(v[0]) == 0 {
		return nil, fmt.Errorf("illegal commandline '%s'", s)
	}
	return v[0], nil
}

// newRegistry builds the registry used by the commands.
var newRegistry = func(conf *config.Config) (*provider.Registry, *vs.Provider) {
	p := vs.New(conf)
	return provider.New(p), p
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadConfigFrom(configPath)
	}
	return config.LoadConfig(), nil
}

type commandFunc func(out io.Writer, reg *provider.Registry, p *vs.Provider) error

func execute(out io.Writer, fn commandFunc) int {
	if err := logflags.Setup(log, logOutput, logDest); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer logflags.Close()

	conf, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	reg, p := newRegistry(conf)
	if err := fn(out, reg, p); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	return 0
}

func infoCmd(out io.Writer, reg *provider.Registry, p *vs.Provider) error {
	info, _, err := reg.CurrentDebugger()
	if err != nil {
		return err
	}
	return printInfo(out, format, info)
}

func findCmd(out io.Writer, p *vs.Provider, pid int) error {
	info, ok, err := p.FindHost(pid)
	if err != nil {
		return err
	}
	if err := printInfo(out, format, info); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no Visual Studio instance among the ancestors of process %d", pid)
	}
	return nil
}

// selectDebugger returns the debugger selected by the command line flags.
func selectDebugger(reg *provider.Registry) (debuginfo.Info, error) {
	switch {
	case debuggerPID > 0:
		return debuginfo.Info{Kind: vs.Kind, ProcessID: debuggerPID}, nil
	case debuggerInfo != "":
		info, err := reg.Decode([]byte(debuggerInfo))
		if err != nil {
			return debuginfo.Info{}, err
		}
		if info.IsNone() {
			return info, fmt.Errorf("unknown debugger %s", debuggerInfo)
		}
		return info, nil
	}
	info, ok, err := reg.CurrentDebugger()
	if err != nil {
		return info, err
	}
	if !ok {
		return info, errors.New("vsattach is not running under a debugger, use --debugger or --debugger-info")
	}
	return info, nil
}

func attachCmd(out io.Writer, reg *provider.Registry, pid int) error {
	info, err := selectDebugger(reg)
	if err != nil {
		return err
	}
	ok, err := reg.AttachTo(info, pid)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("could not attach process %d to %v", pid, info)
	}
	fmt.Fprintf(out, "process %d attached to %v\n", pid, info)
	return nil
}

// execCmd starts processArgs, attaches it and waits for it to exit. It
// returns the exit status of the program.
func execCmd(out io.Writer, reg *provider.Registry, processArgs []string) (int, error) {
	info, err := selectDebugger(reg)
	if err != nil {
		return 1, err
	}

	prog := exec.Command(processArgs[0], processArgs[1:]...)
	prog.Stdin = os.Stdin
	prog.Stdout = os.Stdout
	prog.Stderr = os.Stderr
	if err := prog.Start(); err != nil {
		return 1, err
	}

	ok, err := reg.AttachTo(info, prog.Process.Pid)
	if err == nil && !ok {
		err = fmt.Errorf("could not attach process %d to %v", prog.Process.Pid, info)
	}
	if err != nil {
		logger := logflags.ProviderLogger().WithField("pid", prog.Process.Pid)
		if kerr := prog.Process.Kill(); kerr != nil {
			logger.WithError(kerr).Warn("could not kill the program")
		}
		if werr := prog.Wait(); werr != nil {
			var exitErr *exec.ExitError
			if !errors.As(werr, &exitErr) {
				logger.WithError(werr).Warn("could not wait for the program")
			}
		}
		return 1, err
	}
	fmt.Fprintf(out, "process %d attached to %v\n", prog.Process.Pid, info)

	if err := prog.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return 1, err
	}
	return 0, nil
}

// configCmd prints conf as yaml, after saving it to the configuration file
// if save is set.
func configCmd(out io.Writer, conf *config.Config, save bool) error {
	if save {
		var err error
		if configPath != "" {
			err = config.SaveConfigTo(configPath, conf)
		} else {
			err = config.SaveConfig(conf)
		}
		if err != nil {
			return fmt.Errorf("could not save the configuration: %v", err)
		}
	}
	data, err := yaml.Marshal(conf)
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}

// infoRecord is the yaml form of a debugger identity. It has the same
// fields as the json form.
type infoRecord struct {
	DebuggerName string `yaml:"debuggerName"`
	ProcessID    int    `yaml:"processId"`
}

func printInfo(out io.Writer, f outputFormat, info debuginfo.Info) error {
	switch f {
	case formatJSON:
		data, err := debuginfo.Marshal(info)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "%s\n", data)
		return err
	case formatYAML:
		rec := infoRecord{ProcessID: info.ProcessID}
		if info.Kind != nil {
			rec.DebuggerName = info.Kind.Name()
		}
		data, err := yaml.Marshal(rec)
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	default:
		if info.IsNone() {
			_, err := fmt.Fprintln(out, "no debugger")
			return err
		}
		_, err := fmt.Fprintf(out, "%s debugger, process %d\n", info.Kind.Name(), info.ProcessID)
		return err
	}
}
