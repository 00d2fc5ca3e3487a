package llm

import (
	"context"
	"strings"
)

// OfflineProvider answers from a small pattern table. It exists so the
// engine keeps working with no model configured; its answers are canned and
// every caller that needs a real model must treat them as placeholders.
type OfflineProvider struct{}

func NewOffline() *OfflineProvider { return &OfflineProvider{} }

func (p *OfflineProvider) Kind() Kind { return Offline }

func (p *OfflineProvider) Generate(_ context.Context, prompt string) (string, error) {
	lower := strings.ToLower(prompt)
	switch {
	case strings.Contains(prompt, "Code of Civil Procedure") && strings.Contains(lower, "purpose"):
		return "The Code of Civil Procedure, 1908 is a procedural law related to the administration of civil proceedings in India.", nil
	case strings.Contains(prompt, "Code of Criminal Procedure") && strings.Contains(lower, "purpose"):
		return "The Code of Criminal Procedure, 1973 is the main legislation on procedure for administration of criminal law in India. It provides machinery for investigation of crime, apprehension of suspected criminals, collection of evidence, determination of guilt or innocence, and punishment.", nil
	case strings.Contains(lower, "summarize"):
		return "This is a summary of the provided legal text, focusing on key procedural aspects and definitions.", nil
	case strings.Contains(lower, "extract entities"):
		return `{"case_name": "Simulated Case", "parties": ["Party A", "Party B"], "date_of_judgment": "2023-01-01", "sections_cited": ["Section 1", "Section 2"]}`, nil
	case strings.Contains(lower, "compare"):
		return "Simulated comparison: documents are broadly similar but have minor differences in phrasing.", nil
	default:
		return "I am an offline placeholder model and cannot answer legal queries. Configure a real language model provider.", nil
	}
}
