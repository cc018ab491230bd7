package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newPrune(a *app) *cobra.Command {
	var target int64
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "evict least recently used disk cache files down to a byte budget",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, _ []string) error {
			s, err := a.manager()
			if err != nil {
				return err
			}
			if s.Disk == nil {
				return errors.New("diskcache is not enabled")
			}
			if !cmd.Flags().Changed("max-bytes") {
				target = a.cfg.DiskCache.MaxBytes
			}
			if target <= 0 {
				return errors.New("no budget: set --max-bytes or diskcache.maxBytes")
			}
			removed, err := s.Disk.Prune(target)
			if err != nil {
				return err
			}
			size, err := s.Disk.Size()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d files, %d bytes remain\n", removed, size)
			return nil
		}),
	}
	cmd.Flags().Int64Var(&target, "max-bytes", 0, "byte budget (default: diskcache.maxBytes)")
	return cmd
}
