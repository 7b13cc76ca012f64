// Package export renders the ranking as a table of per-route scores.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/okian/belay/internal/domain/types"
)

// Table returns the header and one row per ranked competitor: rank,
// competitor, club, one column per route and the total. Scores use one
// decimal; a route without a score is left empty.
func Table(entries []types.Entry, scores map[string]map[string]float64, routes []string) [][]string {
	header := make([]string, 0, len(routes)+4)
	header = append(header, "Rank", "Competitor", "Club")
	header = append(header, routes...)
	header = append(header, "Total")

	rows := make([][]string, 0, len(entries)+1)
	rows = append(rows, header)
	for _, e := range entries {
		row := make([]string, 0, len(header))
		row = append(row, strconv.Itoa(e.Rank), e.Competitor, e.Club)
		byRoute := scores[e.Competitor]
		for _, r := range routes {
			if v, ok := byRoute[r]; ok {
				row = append(row, formatScore(v))
			} else {
				row = append(row, "")
			}
		}
		row = append(row, formatScore(e.Total))
		rows = append(rows, row)
	}
	return rows
}

// WriteCSV writes Table output as CSV.
func WriteCSV(w io.Writer, entries []types.Entry, scores map[string]map[string]float64, routes []string) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(Table(entries, scores, routes)); err != nil {
		return fmt.Errorf("write ranking csv: %w", err)
	}
	return nil
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}
