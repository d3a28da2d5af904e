package extraction

import (
	"fmt"
	"strings"
)

// promptInstruction is the fixed instruction template for the
// report-structuring task. The section taxonomy must stay in sync with the
// classes the segment builder recognizes.
const promptInstruction = `# PharmExtract Prompt

## Task Description

You are a pharmaceutical intelligence assistant specialized in categorizing pharmaceutical documents into structured sections:

- **document_header** -- All text that appears before the main content including study identifiers, objectives, and methodological framework.
- **methodology_body** -- Study design, patient demographics, inclusion/exclusion criteria, and procedural details.
- **results_body** -- Primary and secondary endpoints, efficacy data, safety findings, and statistical analyses.
- **conclusions_suffix** -- Interpretations, clinical implications, regulatory recommendations, and future directions.

### Section Categories:
- **document_header**: Use for study identification, objectives, background, and regulatory context before main content. Never use for actual study results or clinical observations.
- **methodology_body**: Use for study design details, patient populations, dosing regimens, and analytical methods.
- **results_body**: Use for all efficacy outcomes, safety data, statistical findings, and clinical observations.
- **conclusions_suffix**: Use for interpretations, clinical significance assessments, and regulatory implications.

### Critical Rule:
If a document contains only results without methodological context, do not create a methodology_body extraction. Start directly with results_body extractions for the clinical content.

### Output Contract:
Return ONLY a JSON object of the form
{"extractions": [{"extraction_class": "...", "extraction_text": "...", "attributes": {"section": "...", "clinical_significance": "normal|minor|significant|not_applicable"}, "char_interval": {"start_pos": 0, "end_pos": 0}}]}
where char_interval gives exact character offsets into the input text.`

// promptExample is one few-shot example embedded in the prompt.
type promptExample struct {
	input       string
	extractions string // JSON body of the expected extractions array
}

var promptExamples = []promptExample{
	{
		input: "FINDINGS: Normal heart and lungs. IMPRESSION: Normal study.",
		extractions: `[
  {"extraction_class": "results_body", "extraction_text": "Normal heart and lungs.", "attributes": {"section": "Chest", "clinical_significance": "normal"}, "char_interval": {"start_pos": 10, "end_pos": 33}},
  {"extraction_class": "conclusions_suffix", "extraction_text": "Normal study.", "attributes": {"section": "impression", "clinical_significance": "normal"}, "char_interval": {"start_pos": 46, "end_pos": 59}}
]`,
	},
	{
		input: "Study PX-204 evaluated 12 mg daily dosing. Patient experienced grade 2 nausea on day 3. Complete response achieved at week 12. Continued monitoring is recommended.",
		extractions: `[
  {"extraction_class": "document_header", "extraction_text": "Study PX-204 evaluated 12 mg daily dosing.", "attributes": {"section": "study", "clinical_significance": "not_applicable"}, "char_interval": {"start_pos": 0, "end_pos": 42}},
  {"extraction_class": "results_body", "extraction_text": "Patient experienced grade 2 nausea on day 3.", "attributes": {"section": "Safety", "clinical_significance": "minor"}, "char_interval": {"start_pos": 43, "end_pos": 87}},
  {"extraction_class": "results_body", "extraction_text": "Complete response achieved at week 12.", "attributes": {"section": "Efficacy", "clinical_significance": "significant"}, "char_interval": {"start_pos": 88, "end_pos": 126}},
  {"extraction_class": "conclusions_suffix", "extraction_text": "Continued monitoring is recommended.", "attributes": {"section": "conclusions", "clinical_significance": "minor"}, "char_interval": {"start_pos": 127, "end_pos": 163}}
]`,
	},
}

// BuildPrompt assembles the full model prompt: instruction, few-shot
// examples, and the report text to structure.
func BuildPrompt(reportText string) string {
	var b strings.Builder
	b.WriteString(promptInstruction)
	b.WriteString("\n\n# Few-Shot Examples\n")
	for i, ex := range promptExamples {
		fmt.Fprintf(&b, "\n## Example %d\n\nInput:\n%s\n\nExtractions:\n%s\n", i+1, ex.input, ex.extractions)
	}
	b.WriteString("\n# Input\n\n")
	b.WriteString(reportText)
	return b.String()
}

// RenderPrompt returns the instruction and examples as shown to the model,
// for inclusion in the response payload (operator visibility into what the
// model was asked).
func RenderPrompt(reportText string) string {
	return BuildPrompt(reportText)
}
