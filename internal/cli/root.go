// Package cli implements the assetctl commands.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/unkn0wn-root/assetcache"
	"github.com/unkn0wn-root/assetcache/config"
	azap "github.com/unkn0wn-root/assetcache/log/zap"
)

// app is the state shared by every subcommand of one invocation.
type app struct {
	configPath string
	verbose    bool

	cfg   *config.Config
	stack *config.Stack[[]byte]
	log   *zap.Logger
	fails *copyFailures
}

// New returns the root command.
func New() *cobra.Command {
	a := &app{fails: newCopyFailures()}
	cmd := &cobra.Command{
		Use:           "assetctl",
		Short:         "inspect and maintain an asset cache stack",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd.Context())
		},
	}
	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "YAML configuration overlaid on the defaults")
	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log at debug level")

	cmd.AddCommand(
		newGet(a),
		newPut(a),
		newRemove(a),
		newCopy(a),
		newPrune(a),
	)
	return cmd
}

func (a *app) open(ctx context.Context) error {
	level := zapcore.WarnLevel
	if a.verbose {
		level = zapcore.DebugLevel
	}
	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	l, err := zc.Build()
	if err != nil {
		return err
	}
	a.log = l

	if a.cfg, err = config.Load(a.configPath); err != nil {
		return err
	}
	a.stack, err = config.Build(ctx, a.cfg, config.BuildOptions{Logger: azap.New(l), Hooks: a.fails})
	return err
}

func (a *app) close(ctx context.Context) error {
	var errs []error
	if a.stack != nil {
		errs = append(errs, a.stack.Manager.Close(ctx))
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
	return errors.Join(errs...)
}

// run wraps a subcommand so the stack is closed even when it fails;
// cobra skips post-run hooks after an error.
func (a *app) run(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := fn(cmd, args)
		return errors.Join(err, a.close(cmd.Context()))
	}
}

func (a *app) manager() (*config.Stack[[]byte], error) {
	if a.stack == nil {
		return nil, fmt.Errorf("backend stack not initialized")
	}
	return a.stack, nil
}

var errNoResult = errors.New("task ended without a result")

// await returns the first value sent on ch by a task scheduled on m. It gives
// up when ctx ends or when m goes idle without a send, which is what a
// panicking task looks like from the outside.
func await[T any](ctx context.Context, m *assetcache.Manager, ch <-chan T) (T, error) {
	idle := make(chan struct{})
	go func() {
		m.Wait()
		close(idle)
	}()

	var zero T
	select {
	case v := <-ch:
		return v, nil
	case <-idle:
		select {
		case v := <-ch:
			return v, nil
		default:
			return zero, errNoResult
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
