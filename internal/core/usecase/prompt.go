package usecase

import "strings"

// maxPromptTextChars bounds how much document text reaches the provider.
const maxPromptTextChars = 12000

const baselineInstructions = `You are an invoice and receipt parser. Return ONLY a JSON object, no markdown.
Extract:
- invoice_number: the invoice or receipt number as a string
- invoice_date: the document date in ISO-8601 format (YYYY-MM-DD)
- line_items: array of objects with description, quantity, unit_price, amount
- total_amount: the total as a bare number, no currency symbols or thousands separators
- currency: the 3-letter ISO 4217 currency code
Set any field you cannot find to null.`

// buildExtractionPrompt compiles the provider prompt: baseline instructions,
// the template's custom-field instructions, the vendor prompt fragment and
// the document text.
func buildExtractionPrompt(text, fieldInstructions, vendorFragment string) string {
	var b strings.Builder
	b.WriteString(baselineInstructions)
	b.WriteString("\n")

	if fieldInstructions != "" {
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(fieldInstructions))
		b.WriteString("\n")
	}
	if fragment := strings.TrimSpace(vendorFragment); fragment != "" {
		b.WriteString("\n")
		b.WriteString(fragment)
		b.WriteString("\n")
	}

	snippet := text
	if len(snippet) > maxPromptTextChars {
		snippet = snippet[:maxPromptTextChars]
	}
	b.WriteString("\nDocument text:\n")
	b.WriteString(snippet)
	return b.String()
}
