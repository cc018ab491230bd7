package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/assetcache"
)

func newRemove(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "rm ID...",
		Aliases: []string{"remove"},
		Short:   "remove assets from every backend that holds them",
		Args:    cobra.MinimumNArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			s, err := a.manager()
			if err != nil {
				return err
			}
			var errs []error
			for _, id := range args {
				err := s.Manager.RemoveAsset(cmd.Context(), id)
				var re *assetcache.RemoveError
				if errors.As(err, &re) {
					for _, f := range re.Failures {
						fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s: %v\n", id, f.Backend, f.Err)
					}
				}
				errs = append(errs, err)
			}
			return errors.Join(errs...)
		}),
	}
}
