package vision

import (
	"strings"

	"github.com/hericlibong/Infograph2Data/constants"
)

const identificationPrompt = `You are a data extraction assistant. Analyze this image and identify all data visualizations and infographics present.

For each distinct element, provide:
1. type: one of [bar_chart, grouped_bar_chart, stacked_bar_chart, line_chart, multi_line_chart, pie_chart, table, kpi_panel, map_data, other]
2. title: the title or heading of this element (if visible), or null if not visible
3. description: brief description of what data it contains
4. data_preview: estimated structure (e.g., "5 categories, 3 series", "12 monthly values")
5. bbox: bounding box as {"x": int, "y": int, "width": int, "height": int} in pixels from top-left
6. confidence: 0.0-1.0 how confident you are in this detection
7. warnings: array of any concerns about extraction accuracy (empty array if none)

Respond ONLY with valid JSON in this exact format:
{
  "detected_items": [
    {
      "type": "bar_chart",
      "title": "Sales by Region",
      "description": "Bar chart showing sales figures for 5 regions",
      "data_preview": "5 categories, single value each",
      "bbox": {"x": 100, "y": 50, "width": 400, "height": 300},
      "confidence": 0.95,
      "warnings": []
    }
  ],
  "image_width": 1000,
  "image_height": 800
}

Important rules:
- Identify SEPARATE elements, not one merged infographic
- Include standalone KPIs/metrics as kpi_panel type
- Note if values are annotated on the chart vs. need to be read from axes (add to warnings)
- bbox coordinates must be integers
- If no visual elements found, return {"detected_items": [], "image_width": ..., "image_height": ...}
`

const extractionPromptAnnotatedOnly = `You are a data extraction assistant. Extract structured data from the specified elements in this image.

Elements to extract:
%ITEMS%

For each element, extract ONLY the values that are explicitly annotated/labeled on the chart.

Rules:
- Extract ONLY values that are explicitly shown as text/numbers on the chart
- Do NOT estimate or read values from axes
- Column names should be clear and descriptive
- Each row should be a dictionary with column names as keys

Respond ONLY with valid JSON in this exact format:
{
  "extractions": [
    {
      "item_id": "item-1",
      "title": "Detected or user-provided title",
      "columns": ["Category", "Value"],
      "rows": [
        {"Category": "A", "Value": 100},
        {"Category": "B", "Value": 200}
      ],
      "confidence": 0.95,
      "notes": null
    }
  ]
}
`

const extractionPromptFull = `You are a data extraction assistant. Extract structured data from the specified elements in this image.

Elements to extract:
%ITEMS%

For each element, extract ALL numeric data into a structured table format.

Rules:
- Use the exact values shown (do not round or approximate)
- If values must be read from an axis (not annotated), estimate them carefully
- Column names should be clear and descriptive
- Each row should be a dictionary with column names as keys
- Preserve the original meaning and context

MANDATORY for time series / line charts:
1. Identify ALL tick marks on the X-axis (e.g., Jan, Feb, Mar, Apr, May, Jun, Jul, Aug, Sep, Oct, Nov, Dec)
2. For EACH series/line in the chart, read the Y-value at EVERY X-axis tick mark
3. You MUST output one row per (series, time_point) combination
4. Example: 4 years x 12 months = 48 rows minimum
5. If a value is not annotated, read it from the Y-axis gridlines
6. DO NOT summarize or aggregate - extract the raw granular data

Respond ONLY with valid JSON in this exact format:
{
  "extractions": [
    {
      "item_id": "item-1",
      "title": "Detected or user-provided title",
      "columns": ["Year", "Month", "Value"],
      "rows": [
        {"Year": 2023, "Month": "Jan", "Value": 5},
        {"Year": 2023, "Month": "Feb", "Value": 12},
        {"Year": 2023, "Month": "Mar", "Value": 25}
      ],
      "confidence": 0.85,
      "notes": "Some values estimated from Y-axis gridlines"
    }
  ]
}

Important:
- Extract EVERY data point at EVERY X-axis position for EVERY series
- Numbers should be actual numbers, not strings
- If uncertain, provide your best estimate and lower the confidence score
`

const extractionPromptFullWithSource = `You are a data extraction assistant. Extract structured data from the specified elements in this image.

Elements to extract:
%ITEMS%

For each element, extract ALL numeric data into a structured table format, marking whether each value is annotated or estimated.

Rules:
- Use the exact values shown (do not round or approximate)
- Column names should be clear and descriptive
- Each row should be a dictionary with column names as keys
- IMPORTANT: Add a "source" column with value "annotated" or "estimated" for each row
  - "annotated" = value is explicitly shown as text on the chart
  - "estimated" = value was read from the axis/gridlines

MANDATORY for time series / line charts:
1. Identify ALL tick marks on the X-axis (e.g., Jan, Feb, Mar, Apr, May, Jun, Jul, Aug, Sep, Oct, Nov, Dec)
2. For EACH series/line in the chart, read the Y-value at EVERY X-axis tick mark
3. You MUST output one row per (series, time_point) combination
4. Example: 4 years x 12 months = 48 rows minimum
5. Mark each row with source="annotated" or source="estimated"

Respond ONLY with valid JSON in this exact format:
{
  "extractions": [
    {
      "item_id": "item-1",
      "title": "Detected or user-provided title",
      "columns": ["Year", "Month", "Value", "source"],
      "rows": [
        {"Year": 2023, "Month": "Jan", "Value": 5, "source": "estimated"},
        {"Year": 2023, "Month": "Feb", "Value": 12, "source": "estimated"},
        {"Year": 2023, "Month": "Aug", "Value": 63, "source": "annotated"}
      ],
      "confidence": 0.85,
      "notes": null
    }
  ]
}

Important:
- Extract EVERY data point at EVERY X-axis position for EVERY series
- Always include the "source" column
- Numbers should be actual numbers, not strings
`

// extractionPrompt fills the items listing into the prompt variant selected
// by the requested granularity.
func extractionPrompt(granularity constants.Granularity, itemsJSON string) string {
	var template string
	switch granularity {
	case constants.GranularityAnnotatedOnly:
		template = extractionPromptAnnotatedOnly
	case constants.GranularityFullWithSource:
		template = extractionPromptFullWithSource
	default:
		template = extractionPromptFull
	}
	return strings.Replace(template, "%ITEMS%", itemsJSON, 1)
}
