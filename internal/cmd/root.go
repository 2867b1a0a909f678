// Package cmd implements the ratco command line: a single root command that
// runs a team on an idea, recovers one from a checkpoint, or writes the
// default LLM provider configuration.
package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ratco/ratco/internal/config"
	"github.com/ratco/ratco/internal/errors"
	"github.com/ratco/ratco/internal/logging"
	"github.com/ratco/ratco/internal/orchestrator"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// Exit codes returned by Execute. Pre-run validation failures and failures
// during a run share code 1.
const (
	ExitOK         = 0
	ExitPreRun     = 1
	ExitFailure    = 1
	ExitMissingArg = 2
)

const (
	missingIdeaMessage   = "Missing argument 'IDEA'. Run 'ratco --help' for more information."
	internalErrorMessage = "an internal error occurred"
)

type rootOptions struct {
	configFile string
	initConfig bool

	investment           float64
	nRound               int
	codeReview           bool
	noCodeReview         bool
	runTests             bool
	implement            bool
	noImplement          bool
	projectName          string
	inc                  bool
	projectPath          string
	reqaFile             string
	maxAutoSummarizeCode int
	recoverPath          string

	env    config.EnvDefaults
	envErr error
	fs     afero.Fs
}

// NewRootCmd builds the ratco command. Environment defaults
// (RATCO_INVESTMENT, RATCO_MAX_ROUNDS, ...) seed the flag defaults; explicit
// flags win.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{fs: afero.NewOsFs()}
	env, err := config.LoadEnvDefaults()
	if err != nil {
		opts.envErr = errors.NewValidationError("malformed environment default").
			WithField("env").WithCause(err)
		env = config.EnvDefaults{Investment: 3.0, MaxRounds: 5}
	}
	opts.env = env

	cmd := &cobra.Command{
		Use:   "ratco [IDEA]",
		Short: "Run a simulated software company on an idea",
		Long: `ratco hires a team of role actors (team leader, product manager,
architect, engineers, QA) and runs them in rounds against an idea until the
project completes, the investment is spent, or the round bound is reached.

A run can be resumed from the checkpoint saved at the end of every run
(default <workspace>/storage/team) with --recover-path.`,
		Example: `  ratco "Create a 2048 game."
  ratco "Create a 2048 game." --run-tests --n-round 3
  ratco "Add a scoreboard" --project-path ./game --inc
  ratco "ignored" --recover-path ./workspace/storage/team
  ratco --init-config`,
		Args:          cobra.MaximumNArgs(1),
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, args)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.configFile, "config", "c", "", "config file (default is $XDG_CONFIG_HOME/ratco/config.yaml)")
	f.Float64Var(&opts.investment, "investment", opts.env.Investment, "dollar amount invested in the team")
	f.IntVar(&opts.nRound, "n-round", opts.env.MaxRounds, "number of rounds for the simulation")
	f.BoolVar(&opts.codeReview, "code-review", true, "give each engineer sub-task a review pass")
	f.BoolVar(&opts.noCodeReview, "no-code-review", false, "disable code review")
	f.BoolVar(&opts.runTests, "run-tests", false, "hire a QA engineer (raises the round bound to 8)")
	f.BoolVar(&opts.implement, "implement", true, "hire the engineer pool to implement the code")
	f.BoolVar(&opts.noImplement, "no-implement", false, "do not hire the engineer pool")
	f.StringVar(&opts.projectName, "project-name", "", "unique project name, such as 'game_2048'")
	f.BoolVar(&opts.inc, "inc", false, "incremental mode: rework an existing project")
	f.StringVar(&opts.projectPath, "project-path", "", "directory of an existing project for incremental mode")
	f.StringVar(&opts.reqaFile, "reqa-file", opts.env.ReqaFile, "source file the QA engineer focuses on")
	f.IntVar(&opts.maxAutoSummarizeCode, "max-auto-summarize-code", 0, "cap on automatic code summaries (-1 is unlimited)")
	f.StringVar(&opts.recoverPath, "recover-path", opts.env.RecoverPath, "recover the team from a checkpoint directory ending in 'team'")
	f.BoolVar(&opts.initConfig, "init-config", false, "write the default LLM configuration to ~/.ratco/config2.yaml and exit")

	return cmd
}

// Execute runs the root command and maps the outcome to an exit code. Every
// scheduler outcome, cancellation included, exits 0.
func Execute(ctx context.Context) int {
	cmd := NewRootCmd()
	err := cmd.ExecuteContext(ctx)
	if err != nil && !errors.Is(err, errors.ErrMissingIdea) {
		reportError(cmd, err)
	}
	return ExitCode(err)
}

// reportError prints err for the user. Errors not marked user facing get a
// generic line and are logged in full to stderr.
func reportError(cmd *cobra.Command, err error) {
	if errors.IsUserFacing(err) {
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
		return
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "Error:", internalErrorMessage)
	if logger, lerr := logging.NewLogger("", "", logging.LevelError); lerr == nil {
		logger.Error("internal error", "error", err)
	}
}

// ExitCode maps an error returned by the root command to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, errors.ErrMissingIdea):
		return ExitMissingArg
	case errors.IsPreRun(err):
		return ExitPreRun
	default:
		return ExitFailure
	}
}

func (o *rootOptions) run(cmd *cobra.Command, args []string) error {
	if o.initConfig {
		return o.writeLLMConfig(cmd)
	}

	var idea string
	if len(args) > 0 {
		idea = strings.TrimSpace(args[0])
	}
	if idea == "" {
		fmt.Fprintln(cmd.ErrOrStderr(), missingIdeaMessage)
		return errors.NewArgumentError("IDEA", errors.ErrMissingIdea)
	}
	if o.envErr != nil {
		return o.envErr
	}

	cfg, err := loadConfig(o.configFile, o.env)
	if err != nil {
		return err
	}
	llm, err := config.LoadLLMConfig(config.LLMConfigFile())
	if err != nil {
		return errors.NewValidationError("invalid LLM configuration").
			WithField("llm").WithCause(err)
	}

	orch := orchestrator.New(cfg,
		orchestrator.WithVersion(Version),
		orchestrator.WithModel(llm.Model),
	)
	res, runErr := orch.Run(cmd.Context(), orchestrator.Options{
		Idea:                 idea,
		Investment:           o.investment,
		MaxRounds:            o.nRound,
		CodeReview:           o.codeReview && !o.noCodeReview,
		RunTests:             o.runTests,
		Implement:            o.implement && !o.noImplement,
		ProjectName:          o.projectName,
		Incremental:          o.inc,
		ProjectPath:          o.projectPath,
		ReqaFile:             o.reqaFile,
		MaxAutoSummarizeCode: o.maxAutoSummarizeCode,
		RecoverPath:          o.recoverPath,
	})
	if res.Outcome != "" {
		printSummary(cmd.OutOrStdout(), res)
	}
	return runErr
}

func (o *rootOptions) writeLLMConfig(cmd *cobra.Command) error {
	res, err := config.WriteDefaultLLMConfig(o.fs, config.LLMConfigFile())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if res.BackupPath != "" {
		fmt.Fprintf(out, "Existing configuration file backed up at %s\n", res.BackupPath)
	}
	fmt.Fprintf(out, "Configuration file initialized at %s\n", res.Path)
	fmt.Fprintln(out, "Edit it to set your LLM api_key before running ratco.")
	return nil
}

// loadConfig reads the application config through viper. RATCO_WORKSPACE
// only replaces the built-in workspace default, so a config file or
// RATCO_WORKSPACE_DIR still wins.
func loadConfig(cfgFile string, env config.EnvDefaults) (*config.Config, error) {
	viper.Reset()
	config.SetDefaults()
	if env.Workspace != "" {
		viper.SetDefault("workspace.dir", env.Workspace)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
	}

	viper.SetEnvPrefix("RATCO")
	// RATCO_TEAM_POOL_CAPACITY for team.pool_capacity
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, errors.NewValidationError("failed to read config file").
				WithField("config").WithValue(viper.ConfigFileUsed()).WithCause(err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, errors.NewValidationError("invalid configuration").
			WithField("config").WithCause(err)
	}
	return cfg, nil
}
