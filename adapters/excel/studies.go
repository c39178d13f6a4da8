package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"metabias/domain/core"
	"metabias/internal/likelihood"
	"metabias/ports"

	"github.com/xuri/excelize/v2"
)

// StudyColumns names the columns holding the estimates and either the
// variances or the standard errors. Empty names are detected from the
// headers.
type StudyColumns struct {
	Estimate string
	Variance string
	StdError string
}

var (
	estimateNames = []string{"yi", "y", "estimate", "effect", "es"}
	varianceNames = []string{"vi", "v", "var", "variance"}
	stdErrorNames = []string{"sei", "se", "stderr", "std_error"}
)

// StudyReader reads (yi, vi) pairs from an xlsx or csv file.
type StudyReader struct {
	reader  *DataReader
	columns StudyColumns
}

var _ ports.StudyReader = (*StudyReader)(nil)

// NewStudyReader creates a reader for path.
func NewStudyReader(path string, columns StudyColumns) *StudyReader {
	return &StudyReader{reader: NewDataReader(path), columns: columns}
}

// ReadStudies parses and validates the studies. Standard errors are squared
// into variances.
func (r *StudyReader) ReadStudies(ctx context.Context) (likelihood.Studies, error) {
	if err := ctx.Err(); err != nil {
		return likelihood.Studies{}, err
	}
	data, err := r.reader.ReadData()
	if err != nil {
		return likelihood.Studies{}, err
	}
	return StudiesFromData(data, r.columns)
}

// StudiesFromData extracts studies from parsed rows.
func StudiesFromData(data *ExcelData, columns StudyColumns) (likelihood.Studies, error) {
	est, err := pickColumn(data.Headers, columns.Estimate, estimateNames)
	if err != nil {
		return likelihood.Studies{}, core.NewInvalidArgument("yi", err.Error())
	}
	variance, varErr := pickColumn(data.Headers, columns.Variance, varianceNames)
	stdErr, seErr := pickColumn(data.Headers, columns.StdError, stdErrorNames)
	if varErr != nil && seErr != nil {
		return likelihood.Studies{}, core.NewInvalidArgumentf("vi", "no variance column (%v) and no standard error column (%v)", varErr, seErr)
	}

	out := likelihood.Studies{Y: make([]float64, 0, len(data.Rows)), V: make([]float64, 0, len(data.Rows))}
	for i, row := range data.Rows {
		y, err := parseCell(row, est, i)
		if err != nil {
			return likelihood.Studies{}, err
		}
		var v float64
		if varErr == nil {
			v, err = parseCell(row, variance, i)
		} else {
			var se float64
			se, err = parseCell(row, stdErr, i)
			v = se * se
		}
		if err != nil {
			return likelihood.Studies{}, err
		}
		out.Y = append(out.Y, y)
		out.V = append(out.V, v)
	}
	if err := out.Validate(); err != nil {
		return likelihood.Studies{}, err
	}
	return out, nil
}

func pickColumn(headers []string, explicit string, candidates []string) (string, error) {
	if explicit != "" {
		for _, h := range headers {
			if h == explicit {
				return h, nil
			}
		}
		return "", fmt.Errorf("column %q not found", explicit)
	}
	for _, c := range candidates {
		for _, h := range headers {
			if strings.EqualFold(h, c) {
				return h, nil
			}
		}
	}
	return "", fmt.Errorf("none of %v among headers %v", candidates, headers)
}

func parseCell(row RawRowData, column string, i int) (float64, error) {
	raw := row[column]
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, core.NewInvalidArgumentf(column, "row %d: %q is not a number", i+2, raw)
	}
	return v, nil
}

// WriteStudiesCSV writes a yi,vi,sei table.
func WriteStudiesCSV(w io.Writer, s likelihood.Studies) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"yi", "vi", "sei"}); err != nil {
		return err
	}
	for i := range s.Y {
		rec := []string{
			strconv.FormatFloat(s.Y[i], 'g', -1, 64),
			strconv.FormatFloat(s.V[i], 'g', -1, 64),
			strconv.FormatFloat(math.Sqrt(s.V[i]), 'g', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteStudiesXLSX writes the same table to the first sheet of a new workbook.
func WriteStudiesXLSX(path string, s likelihood.Studies) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	if err := f.SetSheetRow(sheet, "A1", &[]interface{}{"yi", "vi", "sei"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i := range s.Y {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &[]interface{}{s.Y[i], s.V[i], math.Sqrt(s.V[i])}); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}
