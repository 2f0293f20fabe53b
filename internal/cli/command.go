package cli

import (
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"buildweaver/internal/config"
	"buildweaver/internal/logging"
)

// Version is set at link time.
var Version = "dev"

// command wires the cobra tree to one Run call. The outcome of the analyze
// command lands in result.
type command struct {
	stdout io.Writer
	stderr io.Writer
	v      *viper.Viper
	flags  Flags
	ran    bool
	result Result
}

func newCommand(stdout, stderr io.Writer) (*command, *cobra.Command) {
	c := &command{stdout: stdout, stderr: stderr, v: viper.New()}

	root := &cobra.Command{
		Use:           "buildweaver",
		Short:         "Analyze a build description into a deterministic action graph",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return invalidInvocationf("%v", err)
	})

	analyze := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze every target and report conflicts, orphans and the action graph",
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) > 0 {
				return invalidInvocationf("unexpected arguments: %v", args)
			}
			return nil
		},
		RunE: c.runAnalyze,
	}
	analyze.SetFlagErrorFunc(root.FlagErrorFunc())

	f := analyze.Flags()
	f.StringVar(&c.flags.WorkDir, "workdir", "", "absolute working directory all relative paths resolve against")
	f.StringVar(&c.flags.Build, "build", "", "build description (YAML)")
	f.StringVar(&c.flags.Report, "report", "", "write the analysis report to this path")
	f.StringVar(&c.flags.ReportFormat, "report-format", "", "report encoding: json or cbor (default from the report extension)")
	f.StringVar(&c.flags.Config, "config", "", "config file (YAML)")
	f.Int("concurrency", 0, "maximum number of targets analyzed at once")
	f.String("orphans", "", "orphan policy: ignore, warn or error")
	f.String("log-level", "", "log level: debug, info, warn or error")
	f.String("output-base", "", "output base used when the build description names none")

	_ = c.v.BindPFlag("analysis.concurrency", f.Lookup("concurrency"))
	_ = c.v.BindPFlag("analysis.orphans", f.Lookup("orphans"))
	_ = c.v.BindPFlag("analysis.output_base", f.Lookup("output-base"))
	_ = c.v.BindPFlag("log.level", f.Lookup("log-level"))

	root.AddCommand(analyze)
	return c, root
}

func (c *command) runAnalyze(cmd *cobra.Command, _ []string) error {
	c.ran = true

	inv, err := NewInvocation(c.flags)
	if err != nil {
		c.result = Result{ExitCode: ExitCode(err)}
		return err
	}

	// Unchanged flags only supply their zero value after defaults, the
	// environment and the config file.
	cfg, err := config.Load(c.v, inv.ConfigPath)
	if err != nil {
		err = configErrorf("%v", err)
		c.result = Result{ExitCode: ExitConfigError}
		return err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		err = configErrorf("logger: %v", err)
		c.result = Result{ExitCode: ExitConfigError}
		return err
	}
	defer func() { _ = logger.Sync() }()
	logger.Debug("configuration loaded",
		zap.String("config", inv.ConfigPath),
		zap.String("orphans", string(cfg.Analysis.Orphans)),
		zap.Int("concurrency", cfg.Analysis.Concurrency))

	c.result, err = Execute(cmd.Context(), inv, cfg, Env{
		Logger:      logger,
		Diagnostics: c.stderr,
		TraceOutput: c.stdout,
	})
	return err
}
