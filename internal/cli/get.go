package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/unkn0wn-root/assetcache"
)

func newGet(a *app) *cobra.Command {
	var (
		out   string
		cache bool
	)
	cmd := &cobra.Command{
		Use:   "get ID",
		Short: "resolve an asset and write its payload",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			s, err := a.manager()
			if err != nil {
				return err
			}
			id := args[0]

			done := make(chan *assetcache.Asset, 1)
			l := assetcache.ListenerFuncs{
				OnPartial: func(id string, ratio float64) assetcache.Progress {
					a.log.Debug("loading", zap.String("id", id), zap.Float64("ratio", ratio))
					return assetcache.Continue
				},
				OnNotify: func(_ string, as *assetcache.Asset) { done <- as },
			}
			if err := s.Manager.GetAssetAsync(cmd.Context(), id, l, cache); err != nil {
				return err
			}
			as, err := await(cmd.Context(), s.Manager, done)
			if err != nil {
				return fmt.Errorf("%s: %w", id, err)
			}

			switch {
			case as == nil:
				return fmt.Errorf("%s: not found", id)
			case as.Corrupt():
				return fmt.Errorf("%s: stored data is not decodable", id)
			}
			b, _ := assetcache.PayloadAs[[]byte](as)
			if out == "" || out == "-" {
				_, err = cmd.OutOrStdout().Write(b)
				return err
			}
			return os.WriteFile(out, b, 0o644)
		}),
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "write to file instead of stdout")
	cmd.Flags().BoolVar(&cache, "cache", true, "propagate the result into cache backends")
	return cmd
}
