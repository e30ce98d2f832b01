package pipeline

import (
	"sort"
	"strconv"
	"time"

	"whomst/internal/core"
)

// TotalSeries names the all-spenders cumulative series.
const TotalSeries = "Total"

// Palette is the qualitative colour cycle used for tag bars.
var Palette = []string{
	"#636EFA", "#EF553B", "#00CC96", "#AB63FA", "#FFA15A",
	"#19D3F3", "#FF6692", "#B6E880", "#FF97FF", "#FECB52",
}

// ListingColumns is the fixed column order of the listing table.
var ListingColumns = []string{"Date", "Whomst", "Tag", "Amount", "TS", "Notes"}

// ListingRow is one line of the listing table.
type ListingRow struct {
	Date   string
	Whomst string
	Tag    string
	Amount int64
	TS     string
	Notes  string
}

// Cells returns the row in ListingColumns order.
func (r ListingRow) Cells() []string {
	return []string{r.Date, r.Whomst, r.Tag, strconv.FormatInt(r.Amount, 10), r.TS, r.Notes}
}

// Listing returns every row, newest effective date first. Rows sharing a
// date keep their view order.
func Listing(v View) []ListingRow {
	rows := make([]Row, len(v.Rows))
	copy(rows, v.Rows)
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Effective.After(rows[j].Effective)
	})

	out := make([]ListingRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, ListingRow{
			Date:   r.Effective.Format(core.DisplayLayout),
			Whomst: r.Whomst,
			Tag:    r.Tag,
			Amount: r.Value,
			TS:     r.TS,
			Notes:  r.Notes,
		})
	}
	return out
}

// Point is one step of a cumulative series.
type Point struct {
	Date  time.Time `json:"date"`
	Value int64     `json:"value"`
}

// Series is a named running sum.
type Series struct {
	Name   string  `json:"name"`
	Points []Point `json:"points"`
}

// Last returns the final running value, zero for an empty series.
func (s Series) Last() int64 {
	if len(s.Points) == 0 {
		return 0
	}
	return s.Points[len(s.Points)-1].Value
}

// Cumulative returns the running total over all rows followed by one running
// total per canonical spender, spenders in name order.
func Cumulative(v View) []Series {
	total := Series{Name: TotalSeries, Points: make([]Point, 0, len(v.Rows))}
	bySpender := make(map[string]*Series)

	var sum int64
	for _, r := range v.Rows {
		sum += r.Value
		total.Points = append(total.Points, Point{Date: r.Effective, Value: sum})

		s, ok := bySpender[r.Spender]
		if !ok {
			s = &Series{Name: r.Spender}
			bySpender[r.Spender] = s
		}
		s.Points = append(s.Points, Point{Date: r.Effective, Value: s.Last() + r.Value})
	}

	out := []Series{total}
	for _, name := range sortedKeys(bySpender) {
		out = append(out, *bySpender[name])
	}
	return out
}

// SpenderTotals sums amounts per canonical spender.
func SpenderTotals(v View) map[string]int64 {
	totals := make(map[string]int64)
	for _, r := range v.Rows {
		totals[r.Spender] += r.Value
	}
	return totals
}

// SpenderTotal is one line of the per-spender table.
type SpenderTotal struct {
	Spender string `json:"spender"`
	Total   int64  `json:"total"`
}

// SortedSpenderTotals returns SpenderTotals in spender name order.
func SortedSpenderTotals(v View) []SpenderTotal {
	totals := SpenderTotals(v)
	out := make([]SpenderTotal, 0, len(totals))
	for _, name := range sortedKeys(totals) {
		out = append(out, SpenderTotal{Spender: name, Total: totals[name]})
	}
	return out
}

// TagTotal is the summed amount of one tag.
type TagTotal struct {
	Tag   string `json:"tag"`
	Total int64  `json:"total"`
}

// TagTotals sums amounts per tag, largest first. Equal totals are ordered by
// tag name.
func TagTotals(v View) []TagTotal {
	sums := make(map[string]int64)
	for _, r := range v.Rows {
		sums[r.Tag] += r.Value
	}
	out := make([]TagTotal, 0, len(sums))
	for tag, total := range sums {
		out = append(out, TagTotal{Tag: tag, Total: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Tag < out[j].Tag
	})
	return out
}

// FacetBar is one tag bar inside a spender panel.
type FacetBar struct {
	Tag   string `json:"tag"`
	Total int64  `json:"total"`
	Color string `json:"color"`
}

// FacetPanel holds the tag bars of one spender.
type FacetPanel struct {
	Spender string     `json:"spender"`
	Bars    []FacetBar `json:"bars"`
}

// FacetChart is the per-tag-per-spender breakdown. Colors maps each tag to
// the same colour in every panel.
type FacetChart struct {
	Panels []FacetPanel      `json:"panels"`
	Colors map[string]string `json:"colors"`
	Tags   []string          `json:"tags"`
}

// Facets groups by (tag, spender), sorts the groups by total descending,
// then lays panels out in the order spenders first appear in that list.
// Tag colours are assigned from Palette in the order tags first appear.
func Facets(v View) FacetChart {
	type key struct{ tag, spender string }
	sums := make(map[key]int64)
	for _, r := range v.Rows {
		sums[key{r.Tag, r.Spender}] += r.Value
	}

	groups := make([]key, 0, len(sums))
	for k := range sums {
		groups = append(groups, k)
	}
	sort.Slice(groups, func(i, j int) bool {
		a, b := groups[i], groups[j]
		if sums[a] != sums[b] {
			return sums[a] > sums[b]
		}
		if a.tag != b.tag {
			return a.tag < b.tag
		}
		return a.spender < b.spender
	})

	chart := FacetChart{Colors: make(map[string]string)}
	panelIdx := make(map[string]int)
	for _, g := range groups {
		if _, ok := chart.Colors[g.tag]; !ok {
			chart.Colors[g.tag] = Palette[len(chart.Tags)%len(Palette)]
			chart.Tags = append(chart.Tags, g.tag)
		}
		i, ok := panelIdx[g.spender]
		if !ok {
			i = len(chart.Panels)
			panelIdx[g.spender] = i
			chart.Panels = append(chart.Panels, FacetPanel{Spender: g.spender})
		}
		chart.Panels[i].Bars = append(chart.Panels[i].Bars, FacetBar{
			Tag:   g.tag,
			Total: sums[g],
			Color: chart.Colors[g.tag],
		})
	}
	return chart
}

// UsedTags returns the distinct tags in name order.
func UsedTags(v View) []string {
	seen := make(map[string]struct{})
	for _, r := range v.Rows {
		seen[r.Tag] = struct{}{}
	}
	return sortedKeys(seen)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
