package rag

import (
	"encoding/json"
	"strings"
)

// ContextBlob serialises retrieved texts as a JSON array, keeping rank order.
// No records yields "[]".
func ContextBlob(records []Record) string {
	texts := make([]string, 0, len(records))
	for _, r := range records {
		texts = append(texts, r.Text)
	}
	b, err := json.Marshal(texts)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// BuildSystemPrompt assembles the per-query system message around the context blob
// and the question being answered.
func BuildSystemPrompt(topic, contextBlob, question string) string {
	var sys strings.Builder

	sys.WriteString("You are an AI assistant who knows everything about ")
	sys.WriteString(topic)
	sys.WriteString(".\n")
	sys.WriteString("Use the below context to augment what you know about ")
	sys.WriteString(topic)
	sys.WriteString(".\n")
	sys.WriteString("The context will provide you with the most recent page data from the indexed sources.\n")
	sys.WriteString("If the context doesn't include the information you need, answer based on your existing knowledge ")
	sys.WriteString("and don't mention the source of your information or what the context does or doesn't include.\n")
	sys.WriteString("Format responses using markdown where applicable and don't return images.\n")
	sys.WriteString("-----------\n")
	sys.WriteString("START CONTEXT\n")
	sys.WriteString(contextBlob)
	sys.WriteString("\nEND CONTEXT\n")
	sys.WriteString("-----------\n")
	sys.WriteString("QUESTION: ")
	sys.WriteString(question)
	sys.WriteString("\n-----------\n")

	return sys.String()
}
