package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/spf13/cobra"

	"whomst/internal/cli"
	"whomst/internal/core"
)

var seedTags = []string{"groceries", "rent", "utilities", "dining", "travel", "household", "fun"}

func (a *app) seedCmd() *cobra.Command {
	var (
		count    int
		seed     int64
		spenders []string
		spread   int
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill the store with fake entries for demos",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if count < 1 {
				return fmt.Errorf("invalid --count %d: must be at least 1", count)
			}
			if spread < 1 {
				return fmt.Errorf("invalid --spread %d: must be at least 1 day", spread)
			}

			res, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer res.Cleanup()

			faker := gofakeit.New(seed)
			if len(spenders) == 0 {
				spenders = []string{faker.FirstName(), faker.FirstName(), faker.FirstName()}
			}

			subs := fakeSubmissions(faker, count, spenders, time.Now(), spread)
			for _, sub := range subs {
				if _, err := res.Entries.Submit(cmd.Context(), sub); err != nil {
					return fmt.Errorf("seed entry: %w", err)
				}
			}
			a.println(cli.RenderOK("Seeded %d entries for %v", len(subs), spenders))
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVarP(&count, "count", "c", 25, "Number of entries")
	f.Int64Var(&seed, "seed", 0, "Random seed, 0 for a random one")
	f.StringSliceVar(&spenders, "spenders", nil, "Spender names (default: three random first names)")
	f.IntVar(&spread, "spread", 60, "Spread dates over this many past days")
	return cmd
}

// fakeSubmissions builds count submissions dated within the spread days
// before now. About one in ten is a refund.
func fakeSubmissions(faker *gofakeit.Faker, count int, spenders []string, now time.Time, spread int) []core.Submission {
	start := now.AddDate(0, 0, -(spread - 1))
	out := make([]core.Submission, 0, count)
	for i := 0; i < count; i++ {
		amount := faker.Number(5, 300)
		if faker.Number(1, 10) == 1 {
			amount = -amount
		}
		out = append(out, core.Submission{
			Whomst:       faker.RandomString(spenders),
			Tag:          faker.RandomString(seedTags),
			Amount:       strconv.Itoa(amount),
			Notes:        faker.Sentence(4),
			DateOverride: faker.DateRange(start, now).In(now.Location()).Format(core.DisplayLayout),
		})
	}
	return out
}
