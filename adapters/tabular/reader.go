package tabular

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cdrlens/internal/pipeline"

	"github.com/xuri/excelize/v2"
)

// Reader loads CDR and mobile-money exports into a pipeline Dataset. Both
// Excel workbooks and CSV exports are supported; the format is chosen by
// file extension.
type Reader struct{}

func NewReader() *Reader {
	return &Reader{}
}

// Read loads a file from disk.
func (r *Reader) Read(path string) (*pipeline.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return r.ReadFrom(f, filepath.Base(path))
}

// ReadFrom loads from a stream; name supplies the extension for format
// detection (uploads arrive this way).
func (r *Reader) ReadFrom(src io.Reader, name string) (*pipeline.Dataset, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return r.readCSV(src)
	case ".xlsx", ".xls", ".xlsm":
		return r.readExcel(src)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", filepath.Ext(name))
	}
}

func (r *Reader) readExcel(src io.Reader) (*pipeline.Dataset, error) {
	f, err := excelize.OpenReader(src)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	// Carrier exports put their data on the first sheet.
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	return r.assemble(rows)
}

func (r *Reader) readCSV(src io.Reader) (*pipeline.Dataset, error) {
	reader := csv.NewReader(src)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	return r.assemble(rows)
}

func (r *Reader) assemble(rows [][]string) (*pipeline.Dataset, error) {
	if len(rows) < 2 {
		return nil, fmt.Errorf("file must have a header row and at least one data row")
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(h)
	}

	data := make([]map[string]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		cells := make(map[string]string, len(headers))
		for j, cell := range row {
			if j < len(headers) {
				cells[headers[j]] = strings.TrimSpace(cell)
			}
		}
		data = append(data, cells)
	}
	return pipeline.NewDataset(headers, data), nil
}
