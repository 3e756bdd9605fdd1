package ai

import (
	"strings"
)

// DefaultInstructions is used when the caller gives no instructions
const DefaultInstructions = "Please analyze this financial document and provide insights."

// SystemPrompt frames the model as an asset data extractor
const SystemPrompt = "You are a senior financial data extraction specialist with expertise in " +
	"portfolio analysis, corporate finance and investment research. Extract asset-level " +
	"investment data from financial documents into a single table with exactly 18 columns. " +
	"Present only the table with no additional commentary."

// AssetColumns are the required table headers, in order
var AssetColumns = []string{
	"Name", "Invested Capital", "Current Cost", "Fair Market Value", "Date of Investment",
	"Gross IRR", "Net IRR", "Gross MOIC", "Net MOIC", "EBITDA", "Net Debt", "Total Debt",
	"City", "State", "Country", "Continent", "Business Description", "GICS Sector",
}

const extractionGuide = `## Objective
Extract asset-level investment data from the document (investment reports, portfolio
statements, fund documents or financial statements) into one standardized table.

## Output Format
- One table, one row per asset. Do not aggregate assets or include subtotal rows.
- Use exactly these column headers in this order: %COLUMNS%

## Guidelines
- Name: the most complete legal name available, including suffixes such as LLC or Inc.
- Financial metrics: copy values exactly as written, with currency and units.
- Dates: keep the source format; use year or quarter when that is all that is given.
- IRR as percentages, MOIC as multiples, Gross and Net only when the source says so.
- Location: city, state or province, full country name and continent.
- Business description: at most three sentences.
- GICS sector: only when stated, never inferred.
- Leave cells blank for missing data. Do not estimate or combine fields.

## Identifiers
Values such as NUM_000012 and names such as Fund003 are opaque identifiers that stand for
real figures and fund names. Copy them verbatim into the table exactly where the underlying
value belongs. Never alter, split, renumber or compute with them.`

// BuildPrompt wraps masked document text in the asset extraction prompt
func BuildPrompt(instructions, maskedText string) Prompt {
	instructions = strings.TrimSpace(instructions)
	if instructions == "" {
		instructions = DefaultInstructions
	}

	guide := strings.Replace(extractionGuide, "%COLUMNS%", strings.Join(AssetColumns, " | "), 1)

	var sb strings.Builder
	sb.WriteString(instructions)
	sb.WriteString("\n\n")
	sb.WriteString(guide)
	sb.WriteString("\n\n**Document Content to Analyze:**\n")
	sb.WriteString(maskedText)
	sb.WriteString("\n")

	return Prompt{System: SystemPrompt, User: sb.String()}
}
