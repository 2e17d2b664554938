package rag

// InsufficientInformationMarker is the token the model is instructed to emit
// when the supplied context cannot answer the question. Its presence makes
// the outcome an explicit "insufficient information" success, never a failure.
const InsufficientInformationMarker = "INSUFFICIENT_INFORMATION"

// InsufficientInformationAnswer is returned to the caller when retrieval
// produced no usable grounding or the model declined to answer from it.
const InsufficientInformationAnswer = "There is not enough information in this patient's records to answer the question."

// insufficiencyPhrases catches models that ignore the marker protocol and
// spell out the refusal instead.
var insufficiencyPhrases = []string{
	"no information available",
	"not enough information",
	"insufficient information",
	"no relevant records",
	"cannot answer from the provided context",
}

const generationPromptTemplate = `
You are a clinical assistant answering questions about a single patient. You must
answer using ONLY the patient records provided below. Never use prior knowledge,
never guess, and never assume facts that are not written in the records.

RULES
- If the records do not contain enough information to answer, reply with exactly: ` + InsufficientInformationMarker + `
- When you answer, cite every record you used by including its id tag, e.g. [record: 4f1c...].
- Be precise, concise, and professional.
- Do not add caveats about being an AI.

PATIENT RECORDS
{{range .Entries}}[record: {{.RecordUUID}}] ({{.Kind}})
{{.FormattedText}}

{{end}}QUESTION
{{.Question}}

Answer using only the records above, citing record ids:
`

type generationPromptData struct {
	Entries  []promptEntry
	Question string
}

type promptEntry struct {
	RecordUUID    string
	Kind          string
	FormattedText string
}
