package ingestion

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestReadCSV(t *testing.T) {
	input := "\ufeffId,GENDER,BIRTHDATE\np-1,F,1980-01-01\n,,\np-2,M,\n"
	table, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"Id", "GENDER", "BIRTHDATE"}, table.Header)
	require.Equal(t, 2, table.Len())

	row := table.Row(1)
	assert.Equal(t, 4, row.Line)
	id, ok := row.Get("Id")
	assert.True(t, ok)
	assert.Equal(t, "p-2", id)
	_, ok = row.Get("BIRTHDATE")
	assert.False(t, ok)
	_, ok = row.Get("NOT_A_COLUMN")
	assert.False(t, ok)
	assert.Nil(t, row.Text("BIRTHDATE"))
}

func TestReadCSVKeepsSourceLines(t *testing.T) {
	input := "PATIENT,DESCRIPTION\n" +
		"p-1,Asthma\n" +
		"\n" +
		"p-2,\"multi\nline\"\n" +
		"p-3,Flu\n"
	table, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Equal(t, 3, table.Len())
	assert.Equal(t, 2, table.Row(0).Line)
	assert.Equal(t, 4, table.Row(1).Line)
	assert.Equal(t, 6, table.Row(2).Line)
}

func TestNewTableCopiesHeader(t *testing.T) {
	header := []string{" Id ", "\ufeffGENDER"}
	table := NewTable(header, nil)
	assert.Equal(t, []string{"Id", "GENDER"}, table.Header)
	assert.Equal(t, []string{" Id ", "\ufeffGENDER"}, header)
	assert.True(t, table.HasColumn("GENDER"))
}

func TestReadCSVEmpty(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmptyFile)
}

func TestReadCSVShortRows(t *testing.T) {
	table, err := ReadCSV(strings.NewReader("PATIENT,DATE,VALUE\np-1\n"))
	require.NoError(t, err)
	row := table.Row(0)
	_, ok := row.Get("VALUE")
	assert.False(t, ok)
}

func TestReadTableXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"PATIENT", "START", "DESCRIPTION"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{"p-1", "2020-01-02", "Asthma"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())

	table, err := ReadTable("conditions.XLSX", bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.True(t, table.HasColumn("DESCRIPTION"))
	require.Equal(t, 1, table.Len())
	desc, _ := table.Row(0).Get("DESCRIPTION")
	assert.Equal(t, "Asthma", desc)
	assert.Equal(t, 2, table.Row(0).Line)
}

func TestReadXLSXKeepsSheetRowNumbers(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"PATIENT", "START", "DESCRIPTION"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{"p-1", "2020-01-02", "Asthma"}))
	require.NoError(t, f.SetSheetRow(sheet, "A5", &[]interface{}{"p-2", "2020-02-03", "Flu"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())

	table, err := ReadXLSX(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Equal(t, 2, table.Len())
	assert.Equal(t, 2, table.Row(0).Line)
	assert.Equal(t, 5, table.Row(1).Line)
}

func TestReadTableDefaultsToCSV(t *testing.T) {
	table, err := ReadTable("upload.txt", strings.NewReader("a,b\n1,2\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, table.Len())
}

func TestParseDate(t *testing.T) {
	for _, raw := range []string{"2021-03-04", "2021-03-04T10:11:12Z", "2021-03-04 10:11:12", "03/04/2021"} {
		d := parseDate(raw, true)
		require.NotNil(t, d, raw)
		assert.Equal(t, "2021-03-04", d.String(), raw)
	}
	assert.Nil(t, parseDate("yesterday", true))
	assert.Nil(t, parseDate("2021-03-04", false))
}

func TestParseKindAndPolicy(t *testing.T) {
	k, err := ParseKind(" Observations ")
	require.NoError(t, err)
	assert.Equal(t, KindObservations, k)
	assert.Equal(t, "Observations data uploaded successfully.", k.SuccessMessage())

	_, err = ParseKind("allergies")
	assert.ErrorIs(t, err, ErrUnknownKind)

	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyAbort, p)
	p, err = ParsePolicy("SKIP")
	require.NoError(t, err)
	assert.Equal(t, PolicySkip, p)
	_, err = ParsePolicy("retry")
	assert.Error(t, err)
}
