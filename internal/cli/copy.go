package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/assetcache"
	"github.com/unkn0wn-root/assetcache/config"
)

func newCopy(a *app) *cobra.Command {
	var (
		to     string
		update bool
	)
	cmd := &cobra.Command{
		Use:   "copy --to {file|zip|disk|memory} ID...",
		Short: "copy assets into one backend",
		Args:  cobra.MinimumNArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			s, err := a.manager()
			if err != nil {
				return err
			}
			dst, err := destination(s, to)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			done := make(chan struct{}, 1)
			seen := 0
			l := assetcache.ListenerFuncs{OnNotify: func(id string, as *assetcache.Asset) {
				// CopyAssets notifies sequentially from one worker
				switch err := a.fails.take(id); {
				case err != nil:
					fmt.Fprintf(out, "fail %s: %v\n", id, err)
				case as == nil || as.Corrupt():
					fmt.Fprintf(out, "skip %s\n", id)
				default:
					fmt.Fprintf(out, "ok   %s\n", id)
				}
				if seen++; seen == len(args) {
					done <- struct{}{}
				}
			}}
			if err := s.Manager.CopyAssets(cmd.Context(), args, dst, l, update); err != nil {
				return err
			}
			if _, err := await(cmd.Context(), s.Manager, done); err != nil {
				return err
			}
			if n := a.fails.count(); n > 0 {
				return fmt.Errorf("%d of %d assets not copied", n, len(args))
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&to, "to", "", "destination backend")
	cmd.Flags().BoolVar(&update, "update", false, "overwrite ids the destination already has")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func destination(s *config.Stack[[]byte], name string) (assetcache.Backend, error) {
	var b assetcache.Backend
	switch name {
	case "file":
		if s.File != nil {
			b = s.File
		}
	case "zip":
		if s.Zip != nil {
			b = s.Zip
		}
	case "disk":
		if s.Disk != nil {
			b = s.Disk
		}
	case "memory":
		if s.Mem != nil {
			b = s.Mem
		}
	default:
		return nil, fmt.Errorf("unknown destination %q", name)
	}
	if b == nil {
		return nil, fmt.Errorf("destination %q is not enabled", name)
	}
	return b, nil
}
