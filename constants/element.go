package constants

// ElementType classifies a visual element detected on a page image.
type ElementType string

const (
	ElementBarChart        ElementType = "bar_chart"
	ElementGroupedBarChart ElementType = "grouped_bar_chart"
	ElementStackedBarChart ElementType = "stacked_bar_chart"
	ElementLineChart       ElementType = "line_chart"
	ElementMultiLineChart  ElementType = "multi_line_chart"
	ElementPieChart        ElementType = "pie_chart"
	ElementTable           ElementType = "table"
	ElementKPIPanel        ElementType = "kpi_panel"
	ElementMapData         ElementType = "map_data"
	ElementOther           ElementType = "other"
)

// ParseElementType maps a model-provided string to a known element type,
// falling back to ElementOther for anything unrecognised.
func ParseElementType(s string) ElementType {
	switch ElementType(s) {
	case ElementBarChart, ElementGroupedBarChart, ElementStackedBarChart,
		ElementLineChart, ElementMultiLineChart, ElementPieChart,
		ElementTable, ElementKPIPanel, ElementMapData, ElementOther:
		return ElementType(s)
	}
	return ElementOther
}

// Granularity controls how much of a chart's data the vision model is asked
// to return, and which response schema the reply must satisfy.
type Granularity string

const (
	// GranularityAnnotatedOnly returns only values explicitly labeled on the chart.
	GranularityAnnotatedOnly Granularity = "annotated_only"
	// GranularityFull returns all data points, annotated or estimated from axes.
	GranularityFull Granularity = "full"
	// GranularityFullWithSource returns all data points, each row tagged with
	// a source column of "annotated" or "estimated".
	GranularityFullWithSource Granularity = "full_with_source"
)

// ParseGranularity maps a request string to a granularity, defaulting to full.
func ParseGranularity(s string) (Granularity, bool) {
	switch Granularity(s) {
	case GranularityAnnotatedOnly, GranularityFull, GranularityFullWithSource:
		return Granularity(s), true
	case "":
		return GranularityFull, true
	}
	return "", false
}
