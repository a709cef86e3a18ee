package ollama

import (
	"fmt"
	"strings"

	"github.com/kirillkom/insurance-upsell/internal/core/domain"
)

const passageSeparator = "\n\n---\n\n"

func joinPassages(results []domain.SearchResult) string {
	texts := make([]string, 0, len(results))
	for _, r := range results {
		texts = append(texts, r.ChunkText)
	}
	return strings.Join(texts, passageSeparator)
}

func formatHistory(history []domain.ChatMessage) string {
	lines := make([]string, 0, len(history))
	for _, msg := range history {
		speaker := "Assistant"
		if strings.EqualFold(msg.Role, "user") {
			speaker = "User"
		}
		lines = append(lines, speaker+": "+msg.Content)
	}
	return strings.Join(lines, "\n")
}

func buildAnswerPrompt(plan domain.InsurancePlan, question string, history []domain.ChatMessage, passages []domain.SearchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a knowledgeable insurance assistant for %s's %q policy.\n", plan.CompanyName, plan.PlanName)
	b.WriteString(`Your role is to help customers understand their coverage options.

IMPORTANT RULES:
1. Only answer based on the policy context provided below
2. If information is not in the context, clearly state that you cannot find that specific information in the policy documents
3. Be concise but thorough
4. Use simple language, avoid jargon
5. If asked about claims or specific procedures, mention that they should contact customer service for detailed assistance

Policy Context:
`)
	b.WriteString(joinPassages(passages))
	b.WriteString("\n\n")
	if h := formatHistory(history); h != "" {
		b.WriteString("Previous conversation:\n")
		b.WriteString(h)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "User question: %s\n\nProvide a helpful, accurate response:", question)
	return b.String()
}

func buildPlanSummaryPrompt(passages []string) string {
	return `Given the following insurance policy excerpts:

` + strings.Join(passages, passageSeparator) + `

Analyze these policy documents and provide:

1. A comprehensive summary (2-3 sentences) explaining what this insurance covers and its key benefits
2. The top 3 most important reasons why someone should choose this insurance

IMPORTANT: Provide your response in German (auf Deutsch).

Response format (use exactly this structure):
SUMMARY: [your 2-3 sentence summary here in German]
TOP_REASONS:
- [reason 1 in German]
- [reason 2 in German]
- [reason 3 in German]`
}

func buildProductSummaryPrompt(plan domain.InsurancePlan, productName, category string, passages []domain.SearchResult) string {
	return fmt.Sprintf(`Given the following policy excerpts for %q from %s:

%s

Generate a concise summary (2-3 sentences) explaining why this insurance is a good fit for a %s (%s). Focus on the key coverage benefits that are most relevant for this type of device.

Also provide exactly 3 key coverage highlights as short bullet points.

Response format (use exactly this structure):
SUMMARY: [your 2-3 sentence summary here]
HIGHLIGHTS:
- [highlight 1]
- [highlight 2]
- [highlight 3]`, plan.PlanName, plan.CompanyName, joinPassages(passages), productName, category)
}
