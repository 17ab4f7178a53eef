package etl

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrNoEmailColumn is returned when a CSV header has no email column.
	ErrNoEmailColumn = errors.New("csv header has no email column")
	// ErrUnsupportedFormat is returned for files that are neither JSON nor CSV.
	ErrUnsupportedFormat = errors.New("unsupported batch format")
)

// headerAliases maps normalized CSV headers onto record fields.
var headerAliases = map[string][]string{
	"id":          {"id", "customer_id", "customerid", "uuid"},
	"name":        {"name", "full_name", "fullname", "customer_name", "customer"},
	"email":       {"email", "e_mail", "email_address", "emailaddress", "mail"},
	"avatar":      {"avatar", "avatar_url", "photo", "picture"},
	"status":      {"status", "state", "lifecycle"},
	"total_spend": {"total_spend", "totalspend", "spend", "ltv", "revenue"},
	"last_seen":   {"last_seen", "lastseen", "last_activity", "last_active"},
	"join_date":   {"join_date", "joindate", "joined", "joined_at", "signup_date", "created_at"},
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DecodeJSON reads either a bare array of records or {"records": [...]}.
func DecodeJSON(r io.Reader) ([]Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch: %w", err)
	}
	data = bytes.TrimSpace(bytes.TrimPrefix(data, utf8BOM))
	if len(data) == 0 {
		return []Record{}, nil
	}

	if data[0] == '[' {
		var records []Record
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("failed to decode batch: %w", err)
		}
		return records, nil
	}

	var envelope struct {
		Records []Record `json:"records"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode batch: %w", err)
	}
	if envelope.Records == nil {
		return []Record{}, nil
	}
	return envelope.Records, nil
}

// DecodeCSV reads a CSV file with a header row. Unknown columns are ignored.
func DecodeCSV(r io.Reader) ([]Record, error) {
	br := bufio.NewReader(r)
	if prefix, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(prefix, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return []Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	columns := mapColumns(header)
	if _, ok := columns["email"]; !ok {
		return nil, ErrNoEmailColumn
	}

	records := []Record{}
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv row %d: %w", len(records)+1, err)
		}
		if blankRow(row) {
			continue
		}

		cell := func(field string) string {
			idx, ok := columns[field]
			if !ok || idx >= len(row) {
				return ""
			}
			return row[idx]
		}
		records = append(records, Record{
			ID:         cell("id"),
			Name:       cell("name"),
			Email:      cell("email"),
			Avatar:     cell("avatar"),
			Status:     cell("status"),
			TotalSpend: Value(cell("total_spend")),
			LastSeen:   Value(cell("last_seen")),
			JoinDate:   Value(cell("join_date")),
		})
	}
	return records, nil
}

// DecodeFile picks a decoder from the file extension.
func DecodeFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return DecodeJSON(f)
	case ".csv":
		return DecodeCSV(f)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
	}
}

// mapColumns returns the column index of each known field. The first
// matching column wins.
func mapColumns(header []string) map[string]int {
	columns := make(map[string]int, len(headerAliases))
	for idx, raw := range header {
		normalized := normalizeHeader(raw)
		for field, aliases := range headerAliases {
			if _, taken := columns[field]; taken {
				continue
			}
			for _, alias := range aliases {
				if normalized == alias {
					columns[field] = idx
					break
				}
			}
		}
	}
	return columns
}

func normalizeHeader(header string) string {
	normalized := strings.ToLower(strings.TrimSpace(header))
	normalized = strings.ReplaceAll(normalized, " ", "_")
	normalized = strings.ReplaceAll(normalized, "-", "_")
	return normalized
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
