package main

import (
	"fmt"
	"io"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/nao1215/npoharvest/internal/model"
)

// Region table layout.
const (
	regionColumns = 3
	regionCells   = 18
)

// NewRegionsCmd creates the regions command.
func NewRegionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "regions",
		Short: "List the regions that can be crawled",
		Long: `Regions prints the provincial-level regions known to the registry.

Regions can be passed to 'npoharvest crawl' by full name (北京市) or short
name (北京), separated by spaces or commas. 所有省份, 全国 or "all" select every
region.`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			printRegions(cmd.OutOrStdout())
		},
	}
}

// printRegions writes the numbered region enumeration in columns.
func printRegions(w io.Writer) {
	regions := model.Regions()
	fmt.Fprintf(w, "Available regions (%d):\n\n", len(regions))
	for i, r := range regions {
		fmt.Fprintf(w, "  %2d. %s", i+1, runewidth.FillRight(r.String(), regionCells))
		if (i+1)%regionColumns == 0 || i == len(regions)-1 {
			fmt.Fprintln(w)
		}
	}
}
