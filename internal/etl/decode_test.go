package etl

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJSONArray(t *testing.T) {
	records, err := DecodeJSON(strings.NewReader(`[
		{"name": "Ana", "email": "ana@x.com", "totalSpend": 120.5, "status": "Active"},
		{"name": "Bia", "email": "bia@x.com", "totalSpend": "80", "joinDate": null}
	]`))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, Value("120.5"), records[0].TotalSpend)
	assert.Equal(t, Value("80"), records[1].TotalSpend)
	assert.Equal(t, Value(""), records[1].JoinDate)
}

func TestDecodeJSONEnvelope(t *testing.T) {
	records, err := DecodeJSON(strings.NewReader(`{"records": [{"name": "Ana", "email": "ana@x.com"}]}`))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "ana@x.com", records[0].Email)
}

func TestDecodeJSONEmptyAndInvalid(t *testing.T) {
	records, err := DecodeJSON(strings.NewReader("  "))
	require.NoError(t, err)
	assert.Empty(t, records)

	_, err = DecodeJSON(strings.NewReader(`[{"name": }]`))
	assert.Error(t, err)
}

func TestDecodeJSONKeepsMalformedValuesForValidation(t *testing.T) {
	records, err := DecodeJSON(strings.NewReader(`[{"name": "A", "email": "a@x.com", "totalSpend": "abc"}]`))
	require.NoError(t, err)

	result := Run(records, nil, testNow)
	assert.Equal(t, 1, result.Invalid)
}

func TestDecodeCSVWithAliasesAndBOM(t *testing.T) {
	input := "\xEF\xBB\xBFFull Name,E-mail,Total Spend,Joined,Notes\n" +
		"Ana,ANA@x.com,10.5,2025-01-02,vip\n" +
		",,,,\n" +
		"Bia,bia@x.com,,2025-02-03,\n"

	records, err := DecodeCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "Ana", records[0].Name)
	assert.Equal(t, "ANA@x.com", records[0].Email)
	assert.Equal(t, Value("10.5"), records[0].TotalSpend)
	assert.Equal(t, Value("2025-01-02"), records[0].JoinDate)
	assert.Equal(t, Value(""), records[1].TotalSpend)
}

func TestDecodeCSVRequiresEmailColumn(t *testing.T) {
	_, err := DecodeCSV(strings.NewReader("name,spend\nAna,1\n"))
	assert.ErrorIs(t, err, ErrNoEmailColumn)
}

func TestDecodeCSVEmpty(t *testing.T) {
	records, err := DecodeCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestDecodeFileDispatchesByExtension(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "batch.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`[{"name":"A","email":"a@x.com"}]`), 0o600))
	records, err := DecodeFile(jsonPath)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	csvPath := filepath.Join(dir, "batch.CSV")
	require.NoError(t, os.WriteFile(csvPath, []byte("email,name\nb@x.com,B\n"), 0o600))
	records, err = DecodeFile(csvPath)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "B", records[0].Name)

	txtPath := filepath.Join(dir, "batch.txt")
	require.NoError(t, os.WriteFile(txtPath, []byte("x"), 0o600))
	_, err = DecodeFile(txtPath)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = DecodeFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
