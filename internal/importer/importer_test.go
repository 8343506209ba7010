package importer

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func createTestXLSX(t *testing.T, sheets map[string][][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, rowData := range rows {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				row.AddCell().SetString(cellData)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "leads.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestReadXLSX_MapsColumns(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Leads": {
			{"Fundly ID", "Contact Name", "Email", "Annual Revenue", "Time in Business", "Exclusive"},
			{"182736", "Jane Doe", "jane@example.com", "$500,000", "2-5 years", "no"},
			{"182737", "Gregory", "", "", "", "yes"},
		},
	})

	leads, err := ReadXLSX(path, Options{})
	require.NoError(t, err)
	require.Len(t, leads, 2)

	assert.Equal(t, "182736", leads[0].FundlyID)
	assert.Equal(t, "Jane Doe", leads[0].ContactName)
	assert.Equal(t, "jane@example.com", leads[0].Email)
	assert.Equal(t, "$500,000", leads[0].AnnualRevenue)
	assert.Equal(t, "2-5 years", leads[0].TimeInBusiness)
	assert.False(t, leads[0].Exclusive)

	assert.Equal(t, "182737", leads[1].FundlyID)
	assert.True(t, leads[1].Exclusive)
	assert.Empty(t, leads[1].Email)
}

func TestReadXLSX_SheetByName(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Other": {{"Fundly ID"}, {"1"}},
		"Leads": {{"Fundly ID"}, {"2"}},
	})

	leads, err := ReadXLSX(path, Options{SheetName: "Leads"})
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "2", leads[0].FundlyID)

	_, err = ReadXLSX(path, Options{SheetName: "Missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestReadCSV_LooseHeaderMatching(t *testing.T) {
	input := strings.Join([]string{
		"Lead_ID,Full-Name,EMAIL,Use Of Funds,Bank_Account",
		"9001,Bob Smith,bob@example.com,Equipment purchase,yes",
		",,,missing id row,",
	}, "\n")

	leads, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "9001", leads[0].FundlyID)
	assert.Equal(t, "Bob Smith", leads[0].ContactName)
	assert.Equal(t, "bob@example.com", leads[0].Email)
	assert.Equal(t, "Equipment purchase", leads[0].UseOfFunds)
	assert.Equal(t, "yes", leads[0].BankAccount)
}

func TestReadCSV_NoRecognizedColumns(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("foo,bar\n1,2\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no recognized columns")
}

func TestReadCSV_Empty(t *testing.T) {
	leads, err := ReadCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, leads)
}

func TestReadFile_UnsupportedExtension(t *testing.T) {
	_, err := ReadFile("leads.pdf", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file type")
}
