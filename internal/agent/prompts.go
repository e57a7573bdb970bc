package agent

import (
	"strings"
	"text/template"
)

var flashcardPrompt = template.Must(template.New("flashcards").Parse(`You are a flashcard generator.
Create {{.Count}} question-answer pairs from the following text.
Return a JSON object with a single key "flashcards" holding the list.
Do not include any other text before or after the JSON.

Example Output:
{"flashcards": [
  {"question": "What is an Operating System?", "answer": "Software that manages computer hardware and software resources."},
  {"question": "Name two types of OS.", "answer": "Batch OS, Real-time OS"}
]}

Text:
---
{{.Text}}
---
`))

var quizPrompt = template.Must(template.New("quiz").Parse(`You are a quiz generator.
Make {{.Count}} multiple-choice questions from this text.
Each question must have {{.Options}} options and one correct answer, and the answer must be copied exactly from the options.
Return a JSON object with a single key "questions" holding the list.

Example Output:
{"questions": [
  {"question": "Which of the following is an OS?", "options": ["Compiler", "Assembler", "Batch", "Linker"], "answer": "Batch"}
]}

Text:
---
{{.Text}}
---
`))

var doubtPrompt = template.Must(template.New("doubt").Parse(`You are a helpful study assistant.
Answer the user's question based *only* on the provided context.
If the answer is not in the context, say "{{.Refusal}}"

Context:
---
{{.Context}}
---

Question: {{.Query}}

Answer:
`))

// Refusal is what the doubt prompt asks the model to say when the context
// does not cover a question.
const Refusal = "I'm sorry, I don't have information on that topic from your notes."

func render(t *template.Template, data any) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}
