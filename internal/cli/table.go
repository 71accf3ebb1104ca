package cli

import (
	"io"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/tOgg1/ostruka/internal/db"
)

const columnGap = 2

// writeTable writes headers and rows as left-aligned columns. Widths are
// measured in terminal cells so wide runes line up. Cells beyond the header
// count are dropped.
func writeTable(out io.Writer, headers []string, rows [][]string) error {
	widths := make([]int, len(headers))
	for i, header := range headers {
		widths[i] = runewidth.StringWidth(header)
	}
	for _, row := range rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			widths[i] = max(widths[i], runewidth.StringWidth(row[i]))
		}
	}

	var b strings.Builder
	writeRow := func(cells []string) {
		for i, width := range widths {
			var cell string
			if i < len(cells) {
				cell = cells[i]
			}
			if i == len(widths)-1 {
				b.WriteString(cell)
				break
			}
			b.WriteString(runewidth.FillRight(cell, width+columnGap))
		}
		b.WriteByte('\n')
	}
	writeRow(headers)
	for _, row := range rows {
		writeRow(row)
	}
	_, err := io.WriteString(out, b.String())
	return err
}

// accountRows renders accounts for `account list`.
func accountRows(accounts []*db.Account) [][]string {
	rows := make([][]string, 0, len(accounts))
	for _, account := range accounts {
		rows = append(rows, []string{
			account.Username,
			formatTime(&account.CreatedAt),
			formatTime(account.LastLoginAt),
		})
	}
	return rows
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
