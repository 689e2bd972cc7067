package openaiservice

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"MediMate_V1.0/internal/transcript"
)

/* =================================================================================
						PROMPT TEMPLATES & COMPOSITION
=================================================================================*/

// tipsPromptTemplate instructs the model to answer with a bare JSON array.
// The materializer depends on that shape; anything else is rejected.
const tipsPromptTemplate = `Based on the following user details, generate personalized health tips in strict JSON format:
- User Details: %s
- Lifestyle: %s
- Medical History: %s

Format the output as an array of objects with the following fields:
[
  {
    "title": "Short title for the tip",
    "content": "Detailed description of the tip",
    "category": "Relevant category (e.g., nutrition, exercise, mental health)"
  },
  ...
]`

const chatSystemPromptTemplate = `You are a healthcare professional, providing advice in medical matters. Use the following user data for context:
%s`

const userDataContextTemplate = `User Profile:
%s

Lifestyle Data:
%s

Medical History:
%s`

// BuildTipsPrompt embeds the three records verbatim into the tips prompt.
func BuildTipsPrompt(records UserRecords) string {
	return fmt.Sprintf(tipsPromptTemplate,
		formatRecord(records.Profile, "No user data available"),
		formatRecord(records.Lifestyle, "No lifestyle data available"),
		formatRecord(records.MedicalHistory, "No medical history available"),
	)
}

// BuildChatMessages composes the completions message list for the chat
// flow: one system message embedding the user's records, then the full
// transcript translated into API roles. There is deliberately no
// truncation; very long transcripts will eventually overflow the model's
// token budget and fail at the API boundary.
func BuildChatMessages(records UserRecords, history []transcript.Message) []ChatMessage {
	userDataContext := fmt.Sprintf(userDataContextTemplate,
		formatRecord(records.Profile, "No user data available"),
		formatRecord(records.Lifestyle, "No lifestyle data available"),
		formatRecord(records.MedicalHistory, "No medical history available"),
	)

	messages := make([]ChatMessage, 0, len(history)+1)
	messages = append(messages, ChatMessage{
		Role:    "system",
		Content: fmt.Sprintf(chatSystemPromptTemplate, userDataContext),
	})

	for _, msg := range history {
		role := "user"
		if msg.Sender == transcript.SenderAI {
			role = "assistant"
		}
		messages = append(messages, ChatMessage{Role: role, Content: msg.Text})
	}

	return messages
}

// formatRecord serializes a stored document for prompt embedding, using the
// placeholder when the record is absent.
func formatRecord(raw json.RawMessage, placeholder string) string {
	if len(raw) == 0 {
		return placeholder
	}
	var indented bytes.Buffer
	if err := json.Indent(&indented, raw, "", "  "); err != nil {
		// Pass the payload through untouched if it will not re-indent.
		return strings.TrimSpace(string(raw))
	}
	return indented.String()
}
