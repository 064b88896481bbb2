package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newCatalogCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "查看排课目录",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := opts.loadCatalog()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.format == formatJSON {
				return writeJSON(out, catalog)
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "活动\t人数\t首选负责人\t可选负责人")
			for _, a := range catalog.Activities {
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", a.Name, a.ExpectedEnrollment,
					strings.Join(a.PreferredFacilitators, ", "), strings.Join(a.AcceptableFacilitators, ", "))
			}
			fmt.Fprintln(tw)
			fmt.Fprintln(tw, "教室\t容量")
			for _, r := range catalog.Rooms {
				fmt.Fprintf(tw, "%s\t%d\n", r.Name, r.Capacity)
			}
			fmt.Fprintln(tw)
			fmt.Fprintf(tw, "时间段\t%s\n", strings.Join(catalog.TimeSlots, ", "))
			fmt.Fprintf(tw, "负责人\t%s\n", strings.Join(catalog.Facilitators, ", "))
			return tw.Flush()
		},
	}
}
