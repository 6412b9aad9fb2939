package pipeline

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
)

var csvDelimiters = []rune{',', ';', '\t', '|'}

var csvIDColumns = []string{"articleId", "article_id", "id", "ArticleId", "ID"}

// ReadArticleIDsFromCSV reads the new-article-id scope from a flat
// CSV file. The delimiter is sniffed, a header row is detected by the
// first field not parsing as an integer, and ids keep first-seen
// order with duplicates dropped.
func ReadArticleIDsFromCSV(path string) ([]int64, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("CSV file not found at %s: %w", path, err)
	}

	delimiter := sniffDelimiter(string(raw))
	reader := csv.NewReader(strings.NewReader(string(raw)))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse CSV %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	column := 0
	start := 0
	if hasHeader(records[0]) {
		column = resolveIDColumn(records[0])
		if column < 0 {
			return nil, fmt.Errorf("could not determine article ID column in CSV %s", path)
		}
		start = 1
	}

	seen := make(map[int64]struct{})
	ids := make([]int64, 0, len(records))
	for _, record := range records[start:] {
		if column >= len(record) {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSpace(record[column]), 10, 64)
		if err != nil {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

func (c *Catalog) ArticleIDsFromCSV(path string) ([]int64, error) {
	return ReadArticleIDsFromCSV(path)
}

func sniffDelimiter(sample string) rune {
	if len(sample) > 1024 {
		sample = sample[:1024]
	}
	best := ','
	bestCount := 0
	for _, candidate := range csvDelimiters {
		count := strings.Count(sample, string(candidate))
		if count > bestCount {
			best = candidate
			bestCount = count
		}
	}
	return best
}

func hasHeader(firstRecord []string) bool {
	if len(firstRecord) == 0 {
		return true
	}
	_, err := strconv.ParseInt(strings.TrimSpace(firstRecord[0]), 10, 64)
	return err != nil
}

func resolveIDColumn(header []string) int {
	for _, name := range csvIDColumns {
		for i, field := range header {
			if strings.TrimSpace(field) == name {
				return i
			}
		}
	}
	if len(header) > 0 {
		return 0
	}
	return -1
}
