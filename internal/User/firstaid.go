package user

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

/* =================================================================================
						FIRST AID REFERENCE CONTENT
=================================================================================*/

// FirstAidTopic is a static emergency-reference entry. The content ships
// with the server so it stays available when the AI backend is down.
type FirstAidTopic struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Subtitle string   `json:"subtitle,omitempty"`
	Summary  string   `json:"summary"`
	Steps    []string `json:"steps,omitempty"`
}

var firstAidTopics = []FirstAidTopic{
	{
		ID:       "basic-first-aid",
		Title:    "Basic First Aid",
		Subtitle: "General Principles",
		Summary:  "These steps can help you manage an emergency:",
		Steps: []string{
			"Assess the scene for safety",
			"Check the person's response",
			"Call emergency services",
			"Provide first aid (CPR, wounds, etc.)",
		},
	},
	{
		ID:      "cpr-choking",
		Title:   "CPR & Choking",
		Summary: "Learn how to perform CPR and assist someone who is choking.",
	},
	{
		ID:      "burns-cuts-bleeding",
		Title:   "Burns, Cuts, and Bleeding",
		Summary: "How to handle wounds, burns, and bleeding:",
		Steps: []string{
			"Clean the wound",
			"Apply pressure to stop bleeding",
			"Cover with a sterile bandage",
		},
	},
	{
		ID:      "poisoning-allergies",
		Title:   "Poisoning and Allergies",
		Summary: "What to do in case of poisoning or allergic reactions:",
		Steps: []string{
			"Call Poison Control",
			"Administer epinephrine for allergies (if available)",
		},
	},
	{
		ID:      "fractures-sprains",
		Title:   "Fractures and Sprains",
		Summary: "How to assist someone with fractures or sprains:",
		Steps: []string{
			"Immobilize the injured area",
			"Apply ice and elevate the area",
			"Seek professional medical help",
		},
	},
	{
		ID:      "head-injuries",
		Title:   "Head Injuries",
		Summary: "Immediate steps for head injuries:",
		Steps: []string{
			"Keep the person still",
			"Apply ice to reduce swelling",
			"Seek medical attention immediately",
		},
	},
}

// GetFirstAidTopicsHandler handles GET /firstaid
func GetFirstAidTopicsHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"topics": firstAidTopics,
	})
}

// GetFirstAidTopicHandler handles GET /firstaid/:id
func GetFirstAidTopicHandler(c echo.Context) error {
	id := c.Param("id")
	for _, topic := range firstAidTopics {
		if topic.ID == id {
			return c.JSON(http.StatusOK, topic)
		}
	}
	return c.JSON(http.StatusNotFound, map[string]string{"error": "First aid topic not found"})
}
