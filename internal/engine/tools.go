package engine

import "pivotpath.io/engine/common/llm"

// searchEvidenceArgs are the parameters of the search_evidence tool.
type searchEvidenceArgs struct {
	Query      string `json:"query" jsonschema:"description=Search query for career-transition evidence"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"description=Maximum number of documents to return"`
}

// searchEvidenceTool is offered to tool-enabled stages. The orchestrator
// executes it against the search collaborator and feeds the ranked
// documents back as a tool message.
func searchEvidenceTool() llm.Tool {
	return llm.Tool{
		Name:        "search_evidence",
		Description: "Search a corpus of career-transition articles and stories. Returns ranked documents with title, body, and url.",
		Parameters:  llm.GenerateSchema[searchEvidenceArgs](),
	}
}
