package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"
)

var candidateDelimiters = []rune{',', ';', '\t', '|'}

func readCSV(path string) ([]string, [][]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read csv: %w", err)
	}
	rows, err := parseDelimited(decodeText(raw), -1)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: malformed csv: %v", ErrUnsupportedFileType, err)
	}
	rows = dropBlankRows(rows)
	if len(rows) == 0 {
		return nil, nil, nil
	}
	return rows[0], rows[1:], nil
}

// maxHeaderWords bounds how long a column label in an unlabelled text file may be. Content
// already sniffed as CSV gets twice the allowance.
const maxHeaderWords = 4

// looksTabular reports whether the file reads as a table under a header row of short labels.
// Plain text must also keep a fixed width on every row. Prose fails the header check even
// when every line happens to hold the same number of commas.
func looksTabular(path string, sniffedCSV bool) bool {
	raw, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	fields, maxWords := 0, maxHeaderWords
	if sniffedCSV {
		fields, maxWords = -1, 2*maxHeaderWords
	}
	rows, err := parseDelimited(decodeText(raw), fields)
	if err != nil {
		return false
	}
	rows = dropBlankRows(rows)
	if len(rows) == 0 {
		return false
	}
	for _, cell := range rows[0] {
		if !plausibleHeader(cell, maxWords) {
			return false
		}
	}
	return true
}

func plausibleHeader(cell string, maxWords int) bool {
	cell = strings.TrimSpace(cell)
	if len(strings.Fields(cell)) > maxWords || strings.ContainsAny(cell, "!?") {
		return false
	}
	return !strings.HasSuffix(cell, ".") && !strings.Contains(cell, ". ")
}

// parseDelimited reads text using the delimiter sniffed from the first line.
// fieldsPerRecord follows encoding/csv: 0 demands a fixed width, -1 allows ragged rows.
func parseDelimited(text string, fieldsPerRecord int) ([][]string, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = sniffDelimiter(text)
	r.FieldsPerRecord = fieldsPerRecord
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

// sniffDelimiter picks the candidate that occurs most often in the header line.
func sniffDelimiter(text string) rune {
	header, _, _ := strings.Cut(text, "\n")
	best, bestCount := ',', 0
	for _, d := range candidateDelimiters {
		if n := strings.Count(header, string(d)); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

// decodeText strips a UTF-8 byte order mark and falls back to Latin-1 for bytes that are
// not valid UTF-8.
func decodeText(raw []byte) string {
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))
	if utf8.Valid(raw) {
		return string(raw)
	}
	runes := make([]rune, len(raw))
	for i, b := range raw {
		runes[i] = rune(b)
	}
	return string(runes)
}

func dropBlankRows(rows [][]string) [][]string {
	out := rows[:0]
	for _, r := range rows {
		blank := true
		for _, cell := range r {
			if strings.TrimSpace(cell) != "" {
				blank = false
				break
			}
		}
		if !blank {
			out = append(out, r)
		}
	}
	return out
}
