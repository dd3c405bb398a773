// Package report turns a recovered billing item list into an xlsx
// workbook and runs the report agent that uploads it to Slack.
package report

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/GitVantrue/bedrock-slack-fitcloud/internal/fault"
)

// Workbook is a rendered spreadsheet ready for upload.
type Workbook struct {
	Title    string
	Filename string
	Content  []byte
}

type sheetShape struct {
	title      string
	headers    [2]string
	chartTitle string
	label      func(map[string]any) string
}

// Shapes are probed in order against the first record's fields; the first
// discriminating field wins.
var shapes = []struct {
	field string
	shape sheetShape
}{
	{"billingPeriod", sheetShape{
		title:      "월별 요금 리포트",
		headers:    [2]string{"월", "요금(USD)"},
		chartTitle: "월별 요금",
		label:      func(r map[string]any) string { return asString(r["billingPeriod"]) },
	}},
	{"date", sheetShape{
		title:      "일별 요금 리포트",
		headers:    [2]string{"일", "요금(USD)"},
		chartTitle: "일별 요금",
		label:      func(r map[string]any) string { return firstString(r, "date", "dailyDate") },
	}},
	{"dailyDate", sheetShape{
		title:      "일별 요금 리포트",
		headers:    [2]string{"일", "요금(USD)"},
		chartTitle: "일별 요금",
		label:      func(r map[string]any) string { return firstString(r, "date", "dailyDate") },
	}},
	{"accountId", sheetShape{
		title:      "계정별 요금 리포트",
		headers:    [2]string{"계정ID", "요금(USD)"},
		chartTitle: "계정별 요금",
		label:      func(r map[string]any) string { return asString(r["accountId"]) },
	}},
	{"tagsJson", sheetShape{
		title:      "태그별 요금 리포트",
		headers:    [2]string{"태그", "요금(USD)"},
		chartTitle: "태그별 요금",
		label:      tagLabel,
	}},
	{"tags", sheetShape{
		title:      "태그별 요금 리포트",
		headers:    [2]string{"태그", "요금(USD)"},
		chartTitle: "태그별 요금",
		label:      tagLabel,
	}},
}

// BuildWorkbook renders the records as a two-column sheet with a bar
// chart, or as a generic all-fields dump when no known shape matches.
func BuildWorkbook(records []map[string]any) (*Workbook, error) {
	if len(records) == 0 {
		return nil, fault.New(fault.KindClientParameter, "리포트를 생성할 데이터가 없습니다.")
	}

	file := excelize.NewFile()
	defer file.Close()

	first := records[0]
	shape, ok := matchShape(first)

	var title string
	var err error
	if ok {
		title = shape.title
		err = writeTwoColumnSheet(file, shape, records)
	} else {
		title = "일반 리포트"
		err = writeGenericSheet(file, title, records)
	}
	if err != nil {
		return nil, fault.Wrap(fault.KindUnexpected, err, "workbook build failed")
	}

	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, fault.Wrap(fault.KindUnexpected, err, "workbook serialization failed")
	}
	return &Workbook{Title: title, Filename: "report.xlsx", Content: buf.Bytes()}, nil
}

func matchShape(first map[string]any) (sheetShape, bool) {
	for _, candidate := range shapes {
		if _, ok := first[candidate.field]; ok {
			return candidate.shape, true
		}
	}
	return sheetShape{}, false
}

func writeTwoColumnSheet(file *excelize.File, shape sheetShape, records []map[string]any) error {
	sheet := shape.title
	if err := file.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}
	if err := file.SetCellValue(sheet, "A1", shape.headers[0]); err != nil {
		return err
	}
	if err := file.SetCellValue(sheet, "B1", shape.headers[1]); err != nil {
		return err
	}
	for i, record := range records {
		row := i + 2
		if err := file.SetCellValue(sheet, fmt.Sprintf("A%d", row), shape.label(record)); err != nil {
			return err
		}
		if err := file.SetCellValue(sheet, fmt.Sprintf("B%d", row), amountOf(record)); err != nil {
			return err
		}
	}
	return addBarChart(file, sheet, shape, len(records))
}

// addBarChart mirrors the two-column layout: categories in A, values in B.
func addBarChart(file *excelize.File, sheet string, shape sheetShape, rows int) error {
	return file.AddChart(sheet, "E2", &excelize.Chart{
		Type: excelize.Col,
		Series: []excelize.ChartSeries{{
			Name:       fmt.Sprintf("'%s'!$B$1", sheet),
			Categories: fmt.Sprintf("'%s'!$A$2:$A$%d", sheet, rows+1),
			Values:     fmt.Sprintf("'%s'!$B$2:$B$%d", sheet, rows+1),
		}},
		Title: []excelize.RichTextRun{{Text: shape.chartTitle}},
		XAxis: excelize.ChartAxis{Title: []excelize.RichTextRun{{Text: shape.headers[0]}}},
		YAxis: excelize.ChartAxis{Title: []excelize.RichTextRun{{Text: shape.headers[1]}}},
	})
}

// writeGenericSheet dumps every field of every record. No chart: the
// columns are not guaranteed numeric.
func writeGenericSheet(file *excelize.File, title string, records []map[string]any) error {
	if err := file.SetSheetName("Sheet1", title); err != nil {
		return err
	}
	headers := make([]string, 0, len(records[0]))
	for key := range records[0] {
		headers = append(headers, key)
	}
	sort.Strings(headers)

	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := file.SetCellValue(title, cell, header); err != nil {
			return err
		}
	}
	for i, record := range records {
		for col, header := range headers {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return err
			}
			if err := file.SetCellValue(title, cell, asString(record[header])); err != nil {
				return err
			}
		}
	}
	return nil
}

// amountOf finds the fee under the names upstream uses interchangeably.
func amountOf(record map[string]any) float64 {
	for _, key := range []string{"usageFee", "usageFeeUSD", "onDemandCost", "usageAmount"} {
		if v, ok := record[key]; ok {
			return asFloat(v)
		}
	}
	return 0
}

func tagLabel(record map[string]any) string {
	raw, ok := record["tagsJson"]
	if !ok {
		raw = record["tags"]
	}
	tags, ok := raw.(map[string]any)
	if !ok {
		return asString(raw)
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+":"+asString(tags[k]))
	}
	return strings.Join(parts, ", ")
}

func firstString(record map[string]any, keys ...string) string {
	for _, key := range keys {
		if s := asString(record[key]); s != "" {
			return s
		}
	}
	return ""
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case bool:
		return strconv.FormatBool(s)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", s)
	}
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
