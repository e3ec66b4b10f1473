package storage

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"gmaps-store-scraper/models"
)

const (
	sheetStores  = "All Stores"
	sheetSummary = "Postcode Summary"
	sheetInfo    = "Scrape Info"
)

// reportColumns is the public column contract of the main sheet: header,
// width, and whether cells are centred.
var reportColumns = []struct {
	header string
	width  float64
	center bool
}{
	{"#", 5, true},
	{"Source", 10, true},
	{"Postcode", 12, true},
	{"Store Name", 30, false},
	{"Address", 42, false},
	{"Phone Number", 20, true},
	{"Rating", 8, true},
	{"Reviews", 10, true},
	{"Category", 22, false},
	{"Website", 35, false},
	{"Opening Hours", 40, false},
	{"Latitude", 12, true},
	{"Longitude", 12, true},
	{"Google Maps URL", 40, false},
}

// ExcelReporter writes the merged three-sheet output workbook.
type ExcelReporter struct{}

// NewExcelReporter creates a ready-to-use ExcelReporter.
func NewExcelReporter() *ExcelReporter {
	return &ExcelReporter{}
}

// BuildReport merges existing and new stores into a styled workbook at
// path. Either input may be empty; the artifact is valid regardless.
func (r *ExcelReporter) BuildReport(path string, newStores []*models.Store,
	summaries map[string]*models.PostcodeSummary,
	existingStores []*models.Store, query string) error {

	combined := mergeStores(existingStores, newStores)

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetStores); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	st, err := newReportStyles(f)
	if err != nil {
		return fmt.Errorf("build styles: %w", err)
	}

	if err := r.writeStoresSheet(f, st, combined, existingStores, newStores, query); err != nil {
		return err
	}
	if err := r.writeSummarySheet(f, st, summaries); err != nil {
		return err
	}
	if err := r.writeInfoSheet(f, st, query, existingStores, newStores); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

// mergeStores concatenates existing then new records, defaults their
// provenance, and sorts by (postcode, name) with unknown postcodes last.
func mergeStores(existing, fresh []*models.Store) []*models.Store {
	combined := make([]*models.Store, 0, len(existing)+len(fresh))
	for _, s := range existing {
		if s.Source == "" {
			s.Source = models.SourceExisting
		}
		combined = append(combined, s)
	}
	for _, s := range fresh {
		if s.Source == "" {
			s.Source = models.SourceNew
		}
		combined = append(combined, s)
	}

	sort.SliceStable(combined, func(i, j int) bool {
		pi, pj := sortablePostcode(combined[i].Postcode), sortablePostcode(combined[j].Postcode)
		if pi != pj {
			return pi < pj
		}
		return combined[i].Name < combined[j].Name
	})
	return combined
}

// sortablePostcode pushes records with no known postcode past every real
// one.
func sortablePostcode(pc string) string {
	if pc == "" || pc == models.SentinelPostcode {
		return "￿"
	}
	return pc
}

type reportStyles struct {
	title       int
	header      int
	data        int
	dataCenter  int
	alt         int
	altCenter   int
	postcode    int
	newSource   int
	oldSource   int
	link        int
	summaryData int
	summaryZero int
	infoLabel   int
	infoValue   int
}

func newReportStyles(f *excelize.File) (*reportStyles, error) {
	borders := []excelize.Border{
		{Type: "left", Color: "D9D9D9", Style: 1},
		{Type: "right", Color: "D9D9D9", Style: 1},
		{Type: "top", Color: "D9D9D9", Style: 1},
		{Type: "bottom", Color: "D9D9D9", Style: 1},
	}
	fill := func(color string) excelize.Fill {
		return excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1}
	}

	st := &reportStyles{}
	var err error

	mk := func(s *excelize.Style) int {
		if err != nil {
			return 0
		}
		var id int
		id, err = f.NewStyle(s)
		return id
	}

	st.title = mk(&excelize.Style{
		Font:      &excelize.Font{Family: "Arial", Bold: true, Size: 14, Color: "FFFFFF"},
		Fill:      fill("1F4E79"),
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	st.header = mk(&excelize.Style{
		Font:      &excelize.Font{Family: "Arial", Bold: true, Size: 10, Color: "FFFFFF"},
		Fill:      fill("2F5496"),
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
		Border:    borders,
	})
	st.data = mk(&excelize.Style{
		Font:      &excelize.Font{Family: "Arial", Size: 10},
		Alignment: &excelize.Alignment{Vertical: "top", WrapText: true},
		Border:    borders,
	})
	st.dataCenter = mk(&excelize.Style{
		Font:      &excelize.Font{Family: "Arial", Size: 10},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "top", WrapText: true},
		Border:    borders,
	})
	st.alt = mk(&excelize.Style{
		Font:      &excelize.Font{Family: "Arial", Size: 10},
		Fill:      fill("F2F7FC"),
		Alignment: &excelize.Alignment{Vertical: "top", WrapText: true},
		Border:    borders,
	})
	st.altCenter = mk(&excelize.Style{
		Font:      &excelize.Font{Family: "Arial", Size: 10},
		Fill:      fill("F2F7FC"),
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "top", WrapText: true},
		Border:    borders,
	})
	st.postcode = mk(&excelize.Style{
		Font:      &excelize.Font{Family: "Arial", Bold: true, Size: 10},
		Fill:      fill("D6E4F0"),
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "top", WrapText: true},
		Border:    borders,
	})
	st.newSource = mk(&excelize.Style{
		Font:      &excelize.Font{Family: "Arial", Bold: true, Size: 10, Color: "2E7D32"},
		Fill:      fill("E8F5E9"),
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "top", WrapText: true},
		Border:    borders,
	})
	st.oldSource = mk(&excelize.Style{
		Font:      &excelize.Font{Family: "Arial", Size: 10, Color: "F57F17"},
		Fill:      fill("FFF8E1"),
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "top", WrapText: true},
		Border:    borders,
	})
	st.link = mk(&excelize.Style{
		Font:      &excelize.Font{Family: "Arial", Size: 10, Color: "0563C1", Underline: "single"},
		Alignment: &excelize.Alignment{Vertical: "top", WrapText: true},
		Border:    borders,
	})
	st.summaryData = mk(&excelize.Style{
		Font:      &excelize.Font{Family: "Arial", Size: 10},
		Fill:      fill("E2EFDA"),
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "top"},
		Border:    borders,
	})
	st.summaryZero = mk(&excelize.Style{
		Font:      &excelize.Font{Family: "Arial", Size: 10},
		Fill:      fill("FCE4EC"),
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "top"},
		Border:    borders,
	})
	st.infoLabel = mk(&excelize.Style{
		Font: &excelize.Font{Family: "Arial", Bold: true, Size: 10},
	})
	st.infoValue = mk(&excelize.Style{
		Font: &excelize.Font{Family: "Arial", Size: 10},
	})

	if err != nil {
		return nil, err
	}
	return st, nil
}

func (r *ExcelReporter) writeStoresSheet(f *excelize.File, st *reportStyles,
	combined, existing, fresh []*models.Store, query string) error {

	numCols := len(reportColumns)
	lastCol, _ := excelize.ColumnNumberToName(numCols)

	// Title row
	if err := f.MergeCell(sheetStores, "A1", lastCol+"1"); err != nil {
		return fmt.Errorf("merge title: %w", err)
	}
	title := fmt.Sprintf("%q — %s", query, time.Now().Format("02 Jan 2006 15:04"))
	if len(existing) > 0 {
		title += fmt.Sprintf("  |  %d existing + %d new", len(existing), len(fresh))
	}
	f.SetCellValue(sheetStores, "A1", title)
	f.SetCellStyle(sheetStores, "A1", lastCol+"1", st.title)
	f.SetRowHeight(sheetStores, 1, 30)

	// Header row
	for i, col := range reportColumns {
		name, _ := excelize.ColumnNumberToName(i + 1)
		f.SetCellValue(sheetStores, name+"2", col.header)
		f.SetCellStyle(sheetStores, name+"2", name+"2", st.header)
		f.SetColWidth(sheetStores, name, name, col.width)
	}

	for i, store := range combined {
		row := i + 3
		label := "★ New"
		if store.Source == models.SourceExisting {
			label = "Existing"
		}

		values := []any{
			i + 1, label, store.Postcode, store.Name, store.Address,
			store.Phone, numericOrSentinel(store.Rating), store.TotalReviews,
			store.Category, store.Website, store.OpeningHours,
			coordOrBlank(store.Latitude), coordOrBlank(store.Longitude),
			store.GoogleMapsURL,
		}

		for col := 1; col <= numCols; col++ {
			name, _ := excelize.ColumnNumberToName(col)
			cell := name + strconv.Itoa(row)
			f.SetCellValue(sheetStores, cell, values[col-1])

			style := r.cellStyle(st, col, i, store)
			f.SetCellStyle(sheetStores, cell, cell, style)

			// Clickable website / maps URL columns.
			if col == 10 || col == 14 {
				if v, ok := values[col-1].(string); ok && v != "" && v != models.SentinelNA {
					f.SetCellStyle(sheetStores, cell, cell, st.link)
					f.SetCellHyperLink(sheetStores, cell, v, "External")
				}
			}
		}
	}

	if err := f.SetPanes(sheetStores, &excelize.Panes{
		Freeze:      true,
		YSplit:      2,
		TopLeftCell: "A3",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze panes: %w", err)
	}
	filterRange := fmt.Sprintf("A2:%s%d", lastCol, len(combined)+2)
	if err := f.AutoFilter(sheetStores, filterRange, nil); err != nil {
		return fmt.Errorf("auto filter: %w", err)
	}
	return nil
}

// cellStyle picks the style for a data cell: provenance colouring on the
// source column, postcode highlight, alternating row fill elsewhere.
func (r *ExcelReporter) cellStyle(st *reportStyles, col, rowIdx int, store *models.Store) int {
	switch col {
	case 2:
		if store.Source == models.SourceExisting {
			return st.oldSource
		}
		return st.newSource
	case 3:
		return st.postcode
	}

	centered := reportColumns[col-1].center
	if rowIdx%2 == 1 {
		if centered {
			return st.altCenter
		}
		return st.alt
	}
	if centered {
		return st.dataCenter
	}
	return st.data
}

func (r *ExcelReporter) writeSummarySheet(f *excelize.File, st *reportStyles,
	summaries map[string]*models.PostcodeSummary) error {

	if _, err := f.NewSheet(sheetSummary); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}

	f.MergeCell(sheetSummary, "A1", "D1")
	f.SetCellValue(sheetSummary, "A1", "Results by Postcode (New stores only)")
	f.SetCellStyle(sheetSummary, "A1", "D1", st.title)

	headers := []string{"Postcode", "New Stores", "With Phone", "Avg Rating"}
	widths := []float64{12, 14, 14, 12}
	for i, h := range headers {
		name, _ := excelize.ColumnNumberToName(i + 1)
		f.SetCellValue(sheetSummary, name+"2", h)
		f.SetCellStyle(sheetSummary, name+"2", name+"2", st.header)
		f.SetColWidth(sheetSummary, name, name, widths[i])
	}

	postcodes := make([]string, 0, len(summaries))
	for pc := range summaries {
		postcodes = append(postcodes, pc)
	}
	sort.Strings(postcodes)

	for i, pc := range postcodes {
		info := summaries[pc]
		row := strconv.Itoa(i + 3)

		f.SetCellValue(sheetSummary, "A"+row, pc)
		f.SetCellValue(sheetSummary, "B"+row, info.Count)
		f.SetCellValue(sheetSummary, "C"+row, info.PhoneCount)
		if info.HasRating {
			f.SetCellValue(sheetSummary, "D"+row, math.Round(info.AvgRating*10)/10)
		} else {
			f.SetCellValue(sheetSummary, "D"+row, models.SentinelPostcode)
		}

		style := st.summaryData
		if info.Count == 0 {
			style = st.summaryZero
		}
		f.SetCellStyle(sheetSummary, "A"+row, "D"+row, style)
	}
	return nil
}

func (r *ExcelReporter) writeInfoSheet(f *excelize.File, st *reportStyles, query string,
	existing, fresh []*models.Store) error {

	if _, err := f.NewSheet(sheetInfo); err != nil {
		return fmt.Errorf("create info sheet: %w", err)
	}

	rows := []struct {
		label string
		value any
	}{
		{"Search Query", query},
		{"Date Scraped", time.Now().Format("2006-01-02 15:04:05")},
		{"Method", "Headless Chrome browser automation"},
		{"", ""},
		{"Existing Stores Loaded", len(existing)},
		{"New Stores Scraped", len(fresh)},
		{"Total Stores in File", len(existing) + len(fresh)},
		{"Duplicates Skipped", "Auto-deduplicated by name + address"},
	}

	for i, row := range rows {
		n := strconv.Itoa(i + 1)
		f.SetCellValue(sheetInfo, "A"+n, row.label)
		f.SetCellValue(sheetInfo, "B"+n, row.value)
		f.SetCellStyle(sheetInfo, "A"+n, "A"+n, st.infoLabel)
		f.SetCellStyle(sheetInfo, "B"+n, "B"+n, st.infoValue)
	}
	f.SetColWidth(sheetInfo, "A", "A", 25)
	f.SetColWidth(sheetInfo, "B", "B", 55)
	return nil
}

// numericOrSentinel writes parseable ratings as numbers so spreadsheet
// sorting and averaging work on the column.
func numericOrSentinel(s string) any {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return models.SentinelNA
	}
	return v
}

func coordOrBlank(s string) any {
	if s == "" {
		return ""
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return ""
	}
	return v
}
