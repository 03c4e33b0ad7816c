package descriptions

import "sort"

// Tool names exposed over MCP
const (
	ListFormsTool         = "casedocs_list_forms"
	ListFieldsTool        = "casedocs_list_fields"
	FillFormTool          = "casedocs_fill_form"
	GenerateDocumentsTool = "casedocs_generate_documents"
	ServerInfoTool        = "casedocs_server_info"
)

const (
	ListFormsDescription = `List the forms this server can fill.

**When to use:** Before filling anything, to find the form identifier (for example boe-502-d) and its revisions.

**Returns:** For each form its id, title, template file, output key, the request flag that selects it in a batch and how many fields the mapping table covers.

**Examples:**
• "Which BOE forms can you fill?"
• "Is there a 2019 revision of the PCOR mapping?"

**Best practices:** Pin a revision with form@revision (boe-502-a@2019) when the template on file is an older printing.`

	ListFieldsDescription = `List the fillable fields of a form template.

**When to use:** To check what a template actually contains, for example after the county publishes a new printing, or to debug why a value did not land.

**Input:** Either a registered form id (boe-502-d, boe-502-a@2019) or the path of a PDF inside the template directory.

**Returns:** Field names grouped by type (text, checkbox, radio, dropdown, listbox) with current values and options.

**Best practices:** Compare the listed names with the candidates of the mapping table; a missing candidate is reported as no_candidate when filling.`

	FillFormDescription = `Fill one form from case data.

**When to use:** To produce a single filled PDF such as a BOE-502-D for a decedent's property.

**Input:** form (id or form@revision), case_data (JSON object with keys like decedent_name, death_date, trustee_name, trust_name, apn, beneficiaries[]), optional output (file name inside the output directory).

**Returns:** A summary of assigned and skipped fields. The PDF is written to the output file when given, otherwise returned base64 encoded.

**Examples:**
• "Fill the BOE-502-D for Jane Doe, died 2024-03-01, APN 1234-567-890"

**Best practices:** Dates are accepted as YYYY-MM-DD and written as MM/DD/YYYY. Missing optional keys leave fields blank and are not errors.`

	GenerateDocumentsDescription = `Generate a batch of documents for one case.

**When to use:** To produce every document a trust administration step needs in one call (PCOR, BOE-502-D, 60-day notice, receipts).

**Input:** case_data (JSON object), optional forms (comma separated ids; when omitted the generate_* flags in case_data choose), optional output_dir (inside the output directory).

**Returns:** Batch id, the documents that were filled, per-document errors and warnings. One failing template does not stop the others.

**Best practices:** Read the warnings: they list required case keys that were missing.`

	ServerInfoDescription = `Get server information: version, template locations, cache statistics, registered forms and available tools.

**When to use:** At the start of a session or when a fill fails with a template error.`
)

// ToolDescriptions maps tool names to their descriptions
var ToolDescriptions = map[string]string{
	ListFormsTool:         ListFormsDescription,
	ListFieldsTool:        ListFieldsDescription,
	FillFormTool:          FillFormDescription,
	GenerateDocumentsTool: GenerateDocumentsDescription,
	ServerInfoTool:        ServerInfoDescription,
}

// GetToolDescription returns the description for a tool
func GetToolDescription(toolName string) string {
	if desc, exists := ToolDescriptions[toolName]; exists {
		return desc
	}
	return "Tool description not available"
}

// GetAllToolNames returns the tool names, sorted
func GetAllToolNames() []string {
	names := make([]string, 0, len(ToolDescriptions))
	for name := range ToolDescriptions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
