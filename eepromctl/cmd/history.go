package cmd

import (
	"fmt"
	"math"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/sarchlab/eepromblk/datarecording"
	"github.com/sarchlab/eepromblk/trace"
)

func newHistoryCmd(a *app) *cobra.Command {
	var (
		op      string
		outcome string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "history [TRACE_DB]",
		Short: "List the accesses recorded in a trace database.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.cfg.TraceDB
			if len(args) > 0 {
				path = args[0]
			}

			if path == "" {
				return errors.New("no trace database given")
			}

			reader, err := datarecording.NewReader(path)
			if err != nil {
				return err
			}
			defer reader.Close()

			params := datarecording.QueryParams{
				OrderBy: "StartTime DESC",
				Limit:   limit,
			}

			var where []string
			if op != "" {
				where = append(where, "Op = ?")
				params.Args = append(params.Args, op)
			}

			if outcome != "" {
				where = append(where, "Outcome = ?")
				params.Args = append(params.Args, outcome)
			}

			params.Where = strings.Join(where, " AND ")

			rows, total, err := datarecording.Rows[trace.AccessEntry](
				cmd.Context(), reader, trace.AccessTable, params)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w,
				"TIME\tOP\tBLOCK\tOFFSET\tLENGTH\tCHUNKS\tOUTCOME\tDURATION")

			for _, e := range rows {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%s\t%s\n",
					fromUnixSeconds(e.StartTime).Format(time.RFC3339Nano),
					e.Op, e.Block, e.Offset, e.Length, e.Chunks, e.Outcome,
					secondsToDuration(e.EndTime-e.StartTime))
			}

			err = w.Flush()
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d accesses\n",
				len(rows), total)

			return nil
		},
	}

	cmd.Flags().StringVar(&op, "op", "", "Only list this operation")
	cmd.Flags().StringVar(&outcome, "outcome", "", "Only list this outcome")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of accesses, 0 for all")

	return cmd
}

func fromUnixSeconds(s float64) time.Time {
	sec, frac := math.Modf(s)
	return time.Unix(int64(sec), int64(frac*float64(time.Second)))
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second)).Round(time.Microsecond)
}
