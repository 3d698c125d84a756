package chat

import "strings"

// BuildPrompt assembles the grounded prompt: the full extracted document text
// followed by the user's question. The document content is fenced so the model
// can tell it apart from the instruction.
func BuildPrompt(documentText, question string) string {
	var sb strings.Builder
	sb.WriteString("You are an assistant helping the user understand a document.\n\n")
	sb.WriteString("Document content:\n\"\"\"\n")
	sb.WriteString(documentText)
	sb.WriteString("\n\"\"\"\n\n")
	sb.WriteString("User message:\n\"")
	sb.WriteString(question)
	sb.WriteString("\"\n\nAnswer clearly and concisely.")
	return sb.String()
}
