package drafting

import (
	"strings"
)

const titleInstruction = `Extract ONLY the official name of the grant or funding program mentioned in the text below.

Rules:
- Return ONLY the exact name of the grant program, exactly as written in the text.
- Do NOT include quotes, punctuation or extra words.
- Do NOT include explanations, summaries or any text before or after the name.
- If no grant name is found, return: Unknown Grant

Examples:

Text: "We are applying to the 2023 OpenAI Research Grant."
Output: 2023 OpenAI Research Grant

Text: "Our proposal is for the Binance Labs Incubation Program."
Output: Binance Labs Incubation Program

Text: "We are just exploring ideas."
Output: Unknown Grant

Now extract the grant name from this text:
---
`

const writerSystemPrompt = `You are a grant application writing assistant that prepares clear, compelling and tailored responses to grant application questions using information provided by the user.

Use natural, professional English and write in the third person. Keep the language concise and persuasive. Prioritise innovation, commercial potential and public impact such as job creation, economic contribution or export readiness.`

const draftInstruction = `You will receive the full text a company has provided, with these sections:
- Company information (under "COMPANY DETAILS")
- Grant information (under "GRANT DETAILS")
- Budget plans (under "BUDGET DETAILS")
- Optional attachments and website text
- The full grant application form (under "APPLICATION FORM TEXT")
- Optionally, grant guidelines for tone and alignment

The conversation above contains follow-up answers from the company; treat them as authoritative.

Your task:
1. Extract every individual question or section from the "APPLICATION FORM TEXT".
2. For each question, locate the most relevant information in the other sections and the conversation.
3. Write a complete and professional answer for each question.
4. Format the output like this:
   1. [Application form question]
      [your detailed answer]
   2. [Next question]
      ...

Guidelines:
- Answers can be short or long depending on what fits.
- If a question cannot be answered from the available content, write exactly: "Answer not provided."
- Never invent facts that are not in the text or the conversation.
- Do not include any explanation, JSON or metadata in your output.
- Only return the final application with all questions and answers.

Here is the full text to work with:
---
`

const budgetInstruction = `You are an expert grant analysis assistant.

Extract only two things from the grant guidelines and application form below:
1. A concise list of eligible expenses.
2. Whether matched funding is required, and how much.

Keep the output brief and structured exactly like this example:

Eligible Expenses include:
- Staff salaries directly related to the project
- Equipment and software essential for delivery
- Travel (capped at 10% of total project costs)

Co-contribution / Matched Funding required: 20%

If matched funding is not required, state:
Co-contribution / Matched Funding required: None

Use exact language from the guidelines where relevant and include caps or conditions next to the line item.

INPUTS:
`

func fenced(prefix, body string) string {
	var sb strings.Builder
	sb.WriteString(prefix)
	sb.WriteString(body)
	sb.WriteString("\n---")
	return sb.String()
}
