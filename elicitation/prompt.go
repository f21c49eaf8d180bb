package elicitation

import (
	"strings"

	"github.com/fabfab/grant-drafter/corpus"
	"github.com/fabfab/grant-drafter/llm"
)

// SystemMessage is the first transcript message. It embeds the corpus once and
// is rebuilt from the stored corpus on every turn, never taken from a client.
func SystemMessage(c corpus.Corpus) llm.Message {
	var sb strings.Builder
	sb.WriteString("You are a grant consultant helping a company complete a grant application. ")
	sb.WriteString("The text below contains everything the company has provided so far: ")
	sb.WriteString("company information (under \"COMPANY DETAILS\"), grant information (under \"GRANT DETAILS\"), ")
	sb.WriteString("optional attachments, budget plans (under \"BUDGET DETAILS\"), optional grant guidelines ")
	sb.WriteString("and the application form (under \"APPLICATION FORM TEXT\").\n\n")
	sb.WriteString("FORM TEXT:\n")
	sb.WriteString(c.String())
	return llm.Message{Role: llm.RoleSystem, Content: sb.String()}
}

func synthesisInstruction(excluded []string) string {
	var sb strings.Builder
	sb.WriteString("Read the application form and identify the questions it asks that cannot be answered from the text above.\n")
	sb.WriteString("Return them as short, plain English questions, one required item per question, ")
	sb.WriteString("without numbering, headings or markdown.\n")
	sb.WriteString("Never ask about information the text already answers.\n")
	if len(excluded) > 0 {
		sb.WriteString("Do NOT ask about any of the following topics; they are collected elsewhere:\n")
		for _, topic := range excluded {
			sb.WriteString("- ")
			sb.WriteString(topic)
			sb.WriteString("\n")
		}
	}
	sb.WriteString("Respond with a JSON object of the form {\"questions\": [\"...\"]}. ")
	sb.WriteString("Return an empty list when nothing is missing.")
	return sb.String()
}
