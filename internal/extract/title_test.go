package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInferTitlePrefersMetadata(t *testing.T) {
	meta := map[string]string{"title": "Employee Handbook 2024"}
	got := InferTitle(meta, "Some Random First Line\nmore text")
	assert.Equal(t, "Employee Handbook 2024", got)
}

func TestInferTitleIgnoresJunkMetadata(t *testing.T) {
	meta := map[string]string{"title": "doc1"}
	got := InferTitle(meta, "Acme Corporation Travel Policy\nEffective January 2024")
	assert.Equal(t, "Acme Corporation Travel Policy", got)
}

func TestInferTitleScoring(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			"person name beats org line",
			"Acme Corporation\nJane Example Doe\nSoftware Engineer",
			"Jane Example Doe",
		},
		{
			"skips contact details",
			"jane@example.com\n+1 (555) 123-4567\nParental Leave Guidelines",
			"Parental Leave Guidelines",
		},
		{
			"skips section headings",
			"Summary\nExperience\nNorthwind University Code of Conduct",
			"Northwind University Code of Conduct",
		},
		{
			"skips bare location",
			"Portland, Oregon\nData Retention Policy Handbook",
			"Data Retention Policy Handbook",
		},
		{
			"nothing credible",
			"x\n12345\n????",
			"",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InferTitle(nil, tt.text))
		})
	}
}

func TestNeedsTitleRepair(t *testing.T) {
	tests := []struct {
		name       string
		title      string
		sourceName string
		want       bool
	}{
		{"empty", "", "a.pdf", true},
		{"short single token", "doc3", "a.pdf", true},
		{"long single token is fine", "Benefits-Overview", "a.pdf", false},
		{"matches filename stem", "leave_policy", "leave_policy.pdf", true},
		{"matches filename stem case-insensitive", "Leave_Policy", "leave_policy.docx", true},
		{"real title", "Annual Leave Policy", "leave_policy.pdf", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NeedsTitleRepair(tt.title, tt.sourceName))
		})
	}
}
