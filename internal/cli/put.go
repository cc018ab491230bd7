package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/assetcache"
)

func newPut(a *app) *cobra.Command {
	var (
		format string
		cache  bool
	)
	cmd := &cobra.Command{
		Use:   "put FILE",
		Short: "create an asset in the highest-priority origin and print its id",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			s, err := a.manager()
			if err != nil {
				return err
			}
			b, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if format == "" {
				format = strings.TrimPrefix(filepath.Ext(args[0]), ".")
			}
			if format != "" {
				if err := assetcache.CheckFormat(format); err != nil {
					return err
				}
			}

			ids := make(chan string, 1)
			l := assetcache.ListenerFuncs{OnNotify: func(id string, _ *assetcache.Asset) { ids <- id }}
			if err := s.Manager.CreateAsset(cmd.Context(), assetcache.NewAsset(b, format), l, cache); err != nil {
				return err
			}
			id, err := await(cmd.Context(), s.Manager, ids)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			if id == "" {
				return fmt.Errorf("%s: no origin accepted the asset", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "format hint (default: file extension)")
	cmd.Flags().BoolVar(&cache, "cache", true, "propagate the new asset into cache backends")
	return cmd
}
