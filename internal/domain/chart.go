package domain

// Dataset is one colored series in a chart payload.
type Dataset struct {
	Label           string    `json:"label"`
	Prices          []float64 `json:"prices"`
	BorderColor     string    `json:"borderColor,omitempty"`
	BackgroundColor string    `json:"backgroundColor,omitempty"`
}

// ChartData is the payload rendered by chart widgets.
type ChartData struct {
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

// ChartView pairs chart data with an optional user-facing error.
type ChartView struct {
	Chart        ChartData `json:"chartData"`
	ErrorMessage *string   `json:"errorMessage"`
}

// Color is a border/background pair from a chart palette.
type Color struct {
	Border     string
	Background string
}

// ChartPalette is assigned to datasets by index modulo its length.
var ChartPalette = []Color{
	{Border: "#FFCE56", Background: "rgba(255, 206, 86, 0.2)"},
	{Border: "#36A2EB", Background: "rgba(54, 162, 235, 0.2)"},
	{Border: "#FF6384", Background: "rgba(255, 99, 132, 0.2)"},
	{Border: "#4BC0C0", Background: "rgba(75, 192, 192, 0.2)"},
	{Border: "#9966FF", Background: "rgba(153, 102, 255, 0.2)"},
}

// HistoryColor is used for single-series history charts.
var HistoryColor = Color{Border: "#10B981", Background: "rgba(16, 185, 129, 0.1)"}

// PaletteColor returns the palette entry for dataset index i.
func PaletteColor(i int) Color {
	return ChartPalette[i%len(ChartPalette)]
}
