package render

import (
	"fmt"
	"io"

	"github.com/MakeNowJust/heredoc"

	"github.com/warptools/sedar/sdapi"
)

var (
	statsHeader = heredoc.Doc(`
		+---------------+-------+
		| Item          | Count |
		+---------------+-------+
	`)
	statsFooter = "+---------------+-------+\n"
)

// StatsTable writes stats as a boxed two column table.
// Labels and values are paired up; extras on either side are ignored.
//
// Errors:
//
//    - sedar-error-io -- writing to w failed
func StatsTable(w io.Writer, stats sdapi.Stats) error {
	if _, err := io.WriteString(w, statsHeader); err != nil {
		return sdapi.ErrorIo("writing stats table", "", err)
	}
	labels := stats.Labels.En
	for i := 0; i < len(labels) && i < len(stats.Values); i++ {
		if _, err := fmt.Fprintf(w, "| %-13s | %-5s |\n", labels[i], stats.Values[i].String()); err != nil {
			return sdapi.ErrorIo("writing stats table", "", err)
		}
	}
	if _, err := io.WriteString(w, statsFooter); err != nil {
		return sdapi.ErrorIo("writing stats table", "", err)
	}
	return nil
}
