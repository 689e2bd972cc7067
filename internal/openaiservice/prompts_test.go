package openaiservice

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"MediMate_V1.0/internal/transcript"
)

func TestBuildTipsPromptEmbedsRecords(t *testing.T) {
	records := UserRecords{
		Profile:        json.RawMessage(`{"name":"Ada","age":36}`),
		Lifestyle:      json.RawMessage(`{"sleepHours":7}`),
		MedicalHistory: json.RawMessage(`{"allergies":"pollen"}`),
	}

	prompt := BuildTipsPrompt(records)
	for _, want := range []string{`"name": "Ada"`, `"sleepHours": 7`, `"allergies": "pollen"`, "strict JSON format"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestBuildTipsPromptUsesPlaceholders(t *testing.T) {
	prompt := BuildTipsPrompt(UserRecords{Profile: json.RawMessage(`{"name":"Ada"}`)})
	if !strings.Contains(prompt, "No lifestyle data available") {
		t.Error("missing lifestyle placeholder")
	}
	if !strings.Contains(prompt, "No medical history available") {
		t.Error("missing medical history placeholder")
	}
}

func TestBuildChatMessagesRolesAndOrder(t *testing.T) {
	records := UserRecords{Profile: json.RawMessage(`{"name":"Ada"}`)}
	now := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	history := []transcript.Message{
		transcript.NewMessage(transcript.SenderUser, "I feel dizzy", now),
		transcript.NewMessage(transcript.SenderAI, "How long has this lasted?", now),
		transcript.NewMessage(transcript.SenderUser, "Since this morning", now),
	}

	messages := BuildChatMessages(records, history)
	if len(messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(messages))
	}
	if messages[0].Role != "system" || !strings.Contains(messages[0].Content, `"name": "Ada"`) {
		t.Fatalf("system message malformed: %+v", messages[0])
	}
	wantRoles := []string{"user", "assistant", "user"}
	for i, role := range wantRoles {
		if messages[i+1].Role != role {
			t.Errorf("message %d: expected role %s, got %s", i+1, role, messages[i+1].Role)
		}
		if messages[i+1].Content != history[i].Text {
			t.Errorf("message %d: expected text %q, got %q", i+1, history[i].Text, messages[i+1].Content)
		}
	}
}

func TestFormatRecordPassesThroughUnindentable(t *testing.T) {
	got := formatRecord(json.RawMessage("  plain text  "), "missing")
	if got != "plain text" {
		t.Fatalf("expected trimmed passthrough, got %q", got)
	}
}
