package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/angriff36/manifest/internal/compiler"
	"github.com/angriff36/manifest/internal/engine"
	"github.com/angriff36/manifest/internal/ir"
	"github.com/angriff36/manifest/internal/store"
)

// RunCmdOptions holds flags for the run command.
type RunCmdOptions struct {
	*RootOptions
	InstanceID     string
	ArgsJSON       string
	Tenant         string
	User           string
	Role           string
	DBPath         string
	IdempotencyKey string
}

// NewRunCommand creates the run command, which executes one manifest
// command against stored state.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunCmdOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <manifest> <entity> <command>",
		Short: "Execute one command against an entity instance",
		Long: `Compile a manifest and run one command.

State lives in the SQLite database given by --db; without it the run is
in-memory and nothing persists past the process. A rejected command
(policy, guard or blocking constraint) exits non-zero with the result
attached.`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(opts, args[0], args[1], args[2], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.InstanceID, "instance", "", "instance id to run against")
	cmd.Flags().StringVar(&opts.ArgsJSON, "args-json", "{}", "command arguments as JSON")
	cmd.Flags().StringVar(&opts.Tenant, "tenant", "default", "tenant id")
	cmd.Flags().StringVar(&opts.User, "user", "", "user id")
	cmd.Flags().StringVar(&opts.Role, "role", "", "user role")
	cmd.Flags().StringVar(&opts.DBPath, "db", "", "SQLite database path")
	cmd.Flags().StringVar(&opts.IdempotencyKey, "idempotency-key", "", "replay key for idempotent execution")
	return cmd
}

func runRun(opts *RunCmdOptions, manifestPath, entity, command string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	source, err := LoadManifestSource(manifestPath)
	if err != nil {
		_ = formatter.Error(ErrCodeLoad, err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}
	compiled, diags := compiler.CompileToIR(source)
	if compiled == nil {
		_ = formatter.Error(ErrCodeCompile, "compilation failed", diags)
		return NewExitError(ExitFailure, "compilation failed")
	}

	args, err := ir.DecodeObject([]byte(opts.ArgsJSON))
	if err != nil {
		_ = formatter.Error(ErrCodeRun, fmt.Sprintf("invalid --args-json: %v", err), nil)
		return NewExitError(ExitCommandError, "invalid --args-json")
	}

	var engineOpts []engine.Option
	if opts.DBPath != "" {
		db, err := store.Open(opts.DBPath)
		if err != nil {
			_ = formatter.Error(ErrCodeLoad, err.Error(), nil)
			return WrapExitError(ExitCommandError, "opening database", err)
		}
		defer db.Close()
		engineOpts = append(engineOpts,
			engine.WithStoreProvider(func(string) engine.Store { return db }),
			engine.WithIdempotencyStore(db.Idempotency()),
		)
	}

	eng := engine.New(compiled, engine.Context{
		TenantID: opts.Tenant,
		UserID:   opts.User,
		UserRole: opts.Role,
	}, engineOpts...)

	result, err := eng.RunCommand(cmd.Context(), entity, command, args, engine.RunOptions{
		InstanceID:     opts.InstanceID,
		IdempotencyKey: opts.IdempotencyKey,
	})
	if err != nil {
		_ = formatter.Error(ErrCodeRun, err.Error(), nil)
		return WrapExitError(ExitFailure, "command execution failed", err)
	}

	if opts.Format == "json" {
		if err := json.NewEncoder(cmd.OutOrStdout()).Encode(CLIResponse{Status: "ok", Data: result}); err != nil {
			return err
		}
	} else {
		printResult(formatter, result)
	}
	if !result.Success {
		return NewExitError(ExitFailure, "command rejected")
	}
	return nil
}

func printResult(f *OutputFormatter, result *engine.CommandResult) {
	if result.Success {
		fmt.Fprintln(f.Writer, "success")
	} else if result.DeniedBy != "" {
		fmt.Fprintf(f.Writer, "denied by policy %s: %s\n", result.DeniedBy, result.Error)
	} else {
		fmt.Fprintf(f.Writer, "rejected: %s\n", result.Error)
	}
	for _, o := range result.ConstraintOutcomes {
		status := "pass"
		if !o.Passed {
			status = "FAIL"
		}
		fmt.Fprintf(f.Writer, "  constraint %-30s %s (%s)\n", o.ConstraintID, status, o.Severity)
	}
	for _, ev := range result.EmittedEvents {
		fmt.Fprintf(f.Writer, "  event %s -> %s\n", ev.Name, ev.Channel)
	}
	if result.Instance != nil {
		fmt.Fprintf(f.Writer, "  instance %s version %d\n", result.Instance.ID, result.Instance.Version)
	}
}
