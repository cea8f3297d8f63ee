package usecase

import (
	"fmt"
	"strings"

	"dataroom-rag/internal/domain"
)

// buildGroundedMessages composes the chat messages for a grounded answer:
// a system message with instructions and the retrieved context, the prior
// conversation turns, and the user query.
func buildGroundedMessages(req domain.AnswerRequest) []domain.ChatMessage {
	var sys strings.Builder

	sys.WriteString("<instructions>\n")
	instructions := []string{
		"You are an assistant that answers questions about documents in a secure dataroom.",
		"Answer using ONLY the facts in the <context> section below.",
		"Cite the supporting source by appending [chunk_id] after the relevant sentence.",
		"If the context does not contain the answer, say so plainly instead of guessing.",
		"Do not reveal content from documents that are not listed in <sources>.",
	}
	if len(req.PageNumbers) > 0 {
		pages := make([]string, len(req.PageNumbers))
		for i, p := range req.PageNumbers {
			pages[i] = fmt.Sprintf("%d", p)
		}
		instructions = append(instructions,
			fmt.Sprintf("Restrict your answer to content from page(s) %s only.", strings.Join(pages, ", ")))
	}
	for _, inst := range instructions {
		sys.WriteString("  <line>")
		sys.WriteString(escapeXML(inst))
		sys.WriteString("</line>\n")
	}
	sys.WriteString("</instructions>\n\n")

	sys.WriteString("<sources>\n")
	for _, src := range req.Sources {
		sys.WriteString(fmt.Sprintf("  <source chunk_id=%q document=%q page=\"%d\"/>\n",
			src.ChunkID.String(), escapeXML(src.Title), src.Page))
	}
	sys.WriteString("</sources>\n\n")

	sys.WriteString("<context>\n")
	sys.WriteString(escapeXML(req.ContextText))
	sys.WriteString("\n</context>")

	messages := make([]domain.ChatMessage, 0, len(req.History)+2)
	messages = append(messages, domain.ChatMessage{Role: "system", Content: sys.String()})
	messages = append(messages, req.History...)
	messages = append(messages, domain.ChatMessage{Role: "user", Content: req.Query})
	return messages
}

// buildFallbackText produces the degraded answer for a failed run. Canned
// rather than model-generated so the fallback path has no external
// dependency.
func buildFallbackText(reasonOrQuery string) string {
	switch {
	case reasonOrQuery == timeoutFallbackReason:
		return "I'm sorry, but this request took too long to process. " +
			"Please try again, or narrow your question to fewer documents."
	case strings.Contains(reasonOrQuery, "out of range"):
		return "I couldn't answer that: " + reasonOrQuery + ". " +
			"Please adjust the page reference and ask again."
	default:
		return fmt.Sprintf("I couldn't find relevant content in the selected documents for %q. "+
			"Try rephrasing the question or widening the document selection.", reasonOrQuery)
	}
}

func escapeXML(s string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
	)
	return replacer.Replace(s)
}
