// Package cli implements gridctl, the terminal front end of the data grid.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/gridconsole/internal/application"
	"github.com/JonMunkholm/gridconsole/internal/config"
	"github.com/JonMunkholm/gridconsole/internal/grid"
	"github.com/JonMunkholm/gridconsole/internal/logging"
)

// Env is what the commands read from and write to.
type Env struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer

	// Open builds the application. Defaults to loading the environment.
	Open func(ctx context.Context) (*application.App, error)
}

var (
	errColor  = color.New(color.FgRed, color.Bold)
	okColor   = color.New(color.FgGreen)
	warnColor = color.New(color.FgYellow, color.Bold)
	headColor = color.New(color.FgCyan, color.Bold)
)

// DefaultEnv uses the process streams and environment configuration.
func DefaultEnv() *Env {
	return &Env{
		In:   os.Stdin,
		Out:  os.Stdout,
		Err:  os.Stderr,
		Open: openFromEnvironment,
	}
}

func openFromEnvironment(ctx context.Context) (*application.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	// Logs go to stderr so command output stays parseable.
	slog.SetDefault(logging.New(cfg.Logging.Level, cfg.Logging.Format, os.Stderr))
	return application.New(ctx, cfg, application.Options{
		DisableMetrics: true,
		OnUnauthorized: func() {
			warnColor.Fprintln(os.Stderr, "The platform rejected STORE_TOKEN; sign in again and update it.")
		},
	})
}

// NewRootCommand builds the gridctl command tree.
func NewRootCommand(env *Env) *cobra.Command {
	root := &cobra.Command{
		Use:   "gridctl",
		Short: "Inspect and edit registered tables from the terminal",
		Long: `gridctl edits rows of the tables registered in the grid's safety
allow-list. Only writable columns can be changed; protected columns are
refused before anything is sent to the platform.

Configuration comes from the environment (and .env), the same as the server:
STORE_DRIVER, STORE_BASE_URL, STORE_TOKEN, DATABASE_URL, GRID_SCHEMA_FILE.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(env.In)
	root.SetOut(env.Out)
	root.SetErr(env.Err)

	root.AddCommand(
		newTablesCmd(env),
		newListCmd(env),
		newSetCmd(env),
		newCreateCmd(env),
		newUpdateCmd(env),
		newDeleteCmd(env),
		newAuditCmd(env),
	)
	return root
}

// Execute runs gridctl and returns the process exit code.
func Execute(ctx context.Context, env *Env, args []string) int {
	root := NewRootCommand(env)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		printError(env.Err, err)
		return 1
	}
	return 0
}

// printError shows grid errors with their support code and anything else
// as-is.
func printError(w io.Writer, err error) {
	if grid.IsUserFacing(err) {
		errColor.Fprintf(w, "✗ %s\n", grid.FormatUserError(err))
		return
	}
	errColor.Fprintf(w, "✗ %v\n", err)
}

// withController opens the app, runs fn with a fresh Controller and
// closes the app.
func withController(cmd *cobra.Command, env *Env, fn func(ctx context.Context, ctrl *grid.Controller) error) error {
	ctx := grid.WithActor(cmd.Context(), actor())
	app, err := env.Open(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	ctrl := app.Controller()
	defer ctrl.Close(ctx)
	return fn(ctx, ctrl)
}

// actor names the operator in audit entries.
func actor() string {
	user := os.Getenv("USER")
	if user == "" {
		user = "unknown"
	}
	host, _ := os.Hostname()
	return "gridctl:" + user + "@" + host
}

// readLine reads one line of input.
func readLine(r io.Reader) (string, error) {
	sc := bufio.NewScanner(r)
	if sc.Scan() {
		return sc.Text(), nil
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("no input")
}
