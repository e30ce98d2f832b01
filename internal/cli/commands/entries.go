package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"whomst/internal/cli"
	"whomst/internal/core"
)

func (a *app) submitCmd() *cobra.Command {
	var sub core.Submission

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Record an expense",
		Example: `  whomstctl submit -w alice -t groceries -a 42
  whomstctl submit -w bob -t rent -a 800 --date 01-31-2024 --notes "January"`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer res.Cleanup()

			e, err := res.Entries.Submit(cmd.Context(), core.Submission{
				Whomst:       strings.TrimSpace(sub.Whomst),
				Tag:          strings.TrimSpace(sub.Tag),
				Amount:       strings.TrimSpace(sub.Amount),
				Notes:        strings.TrimSpace(sub.Notes),
				DateOverride: strings.TrimSpace(sub.DateOverride),
			})
			if err != nil {
				var verr *core.ValidationError
				if errors.As(err, &verr) {
					return errors.New(verr.Message)
				}
				return err
			}

			a.println(cli.RenderOK("Saved %s: %s spent %s on %s", e.TS, core.NormalizeSpender(e.Whomst), e.Amount, e.Tag))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&sub.Whomst, "whomst", "w", "", "Who paid")
	f.StringVarP(&sub.Tag, "tag", "t", "", "Spending category")
	f.StringVarP(&sub.Amount, "amount", "a", "", "Whole amount, negative for refunds")
	f.StringVar(&sub.Notes, "notes", "", "Free text")
	f.StringVar(&sub.DateOverride, "date", "", "Effective date as MM-DD-YYYY")
	_ = cmd.MarkFlagRequired("whomst")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func (a *app) removeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <entry-id>",
		Short: "Soft delete an entry by its TS",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer res.Cleanup()

			if err := res.Entries.Remove(cmd.Context(), args[0]); err != nil {
				if errors.Is(err, core.ErrNotFound) {
					return fmt.Errorf("%s (%s)", core.MsgInvalidID, args[0])
				}
				return err
			}
			a.println(cli.RenderOK("Removed %s", args[0]))
			return nil
		},
	}
}
