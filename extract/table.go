package extract

import (
	"slices"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/dashscrape/fingerprint"
	"github.com/use-agent/dashscrape/models"
)

type tableStrategy struct{}

func (tableStrategy) kind() Kind { return KindTable }

func (tableStrategy) extract(s *state) error {
	s.each(KindTable, s.sel.table, func(el *goquery.Selection) error {
		headers, rows := parseHTMLTable(el, s.rules.Tables.MaxRows)
		s.addTable(el, headers, rows)
		return nil
	})
	s.each(KindTable, s.sel.grid, func(el *goquery.Selection) error {
		headers, rows := parseGrid(el, s.rules.Tables.MaxRows)
		s.addTable(el, headers, rows)
		return nil
	})
	return nil
}

func (s *state) addTable(el *goquery.Selection, headers []string, rows [][]string) {
	if len(rows) == 0 {
		return
	}
	s.claim(KindTable, el)
	if headers == nil {
		headers = []string{}
	}

	cols := len(rows[0])
	if cols == 0 {
		cols = len(headers)
	}
	s.out.Tables = append(s.out.Tables, models.Table{
		Headers:     headers,
		Rows:        rows,
		RowCount:    len(rows),
		ColumnCount: cols,
		Fingerprint: fingerprint.Of("table", fingerprint.Grid(headers, rows)...),
	})
}

// parseHTMLTable reads a <table> without descending into nested tables.
// Headers come from the first <thead> row, or from a leading body row made
// only of <th> cells.
func parseHTMLTable(t *goquery.Selection, maxRows int) ([]string, [][]string) {
	headers := []string{}
	if head := t.ChildrenFiltered("thead").ChildrenFiltered("tr").First(); head.Length() > 0 {
		headers = cellTexts(head.ChildrenFiltered("th, td"))
	}

	body := t.ChildrenFiltered("tbody, tfoot").ChildrenFiltered("tr")
	body = body.AddSelection(t.ChildrenFiltered("tr"))

	rows := [][]string{}
	body.EachWithBreak(func(i int, tr *goquery.Selection) bool {
		cells := tr.ChildrenFiltered("th, td")
		if i == 0 && len(headers) == 0 && cells.Length() > 0 && cells.Length() == cells.Filter("th").Length() {
			headers = cellTexts(cells)
			return true
		}
		rows = appendRow(rows, headers, cellTexts(cells))
		return maxRows <= 0 || len(rows) < maxRows
	})
	return headers, rows
}

// parseGrid reads an ARIA grid built from divs.
func parseGrid(g *goquery.Selection, maxRows int) ([]string, [][]string) {
	headers := cellTexts(g.Find(`[role="columnheader"]`))

	rows := [][]string{}
	g.Find(`[role="row"]`).EachWithBreak(func(_ int, r *goquery.Selection) bool {
		cells := r.Find(`[role="gridcell"], [role="cell"], [role="rowheader"]`)
		if cells.Length() == 0 {
			return true
		}
		rows = appendRow(rows, headers, cellTexts(cells))
		return maxRows <= 0 || len(rows) < maxRows
	})
	return headers, rows
}

// appendRow drops empty rows and rows repeating the header.
func appendRow(rows [][]string, headers, row []string) [][]string {
	empty := true
	for _, c := range row {
		if c != "" {
			empty = false
			break
		}
	}
	if empty || (len(headers) > 0 && slices.Equal(row, headers)) {
		return rows
	}
	return append(rows, row)
}

func cellTexts(cells *goquery.Selection) []string {
	if cells.Length() == 0 {
		return nil
	}
	out := make([]string, 0, cells.Length())
	cells.Each(func(_ int, c *goquery.Selection) {
		out = append(out, Text(c))
	})
	return out
}
