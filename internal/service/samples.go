package service

import (
	"time"

	"github.com/Aman-CERP/msgindex/internal/store"
)

// SampleMessages returns the built-in demo conversation, timestamped
// relative to now.
func SampleMessages(now time.Time) []store.Message {
	now = truncate(now)
	return []store.Message{
		{
			ID:         "sample-001",
			Sender:     "Alice",
			Recipients: []string{"Bob", "Charlie"},
			Subject:    "Project Kickoff",
			Body:       "Team, let's kickoff the new search project next Monday. Agenda includes setup and initial indexing strategy. Location: Mars Conf Room A.",
			Timestamp:  now.Add(-72 * time.Hour),
		},
		{
			ID:         "sample-002",
			Sender:     "Bob",
			Recipients: []string{"Alice"},
			Subject:    "Re: Project Kickoff",
			Body:       "Sounds good, Alice. I've prepared some notes on the index configuration.",
			Timestamp:  now.Add(-48 * time.Hour),
		},
		{
			ID:         "sample-003",
			Sender:     "Charlie",
			Recipients: []string{"Alice", "Bob", "David"},
			Subject:    "Frontend Setup",
			Body:       "I've set up the basic frontend. Ready for API integration.",
			Timestamp:  now.Add(-24 * time.Hour),
		},
		{
			ID:         "sample-004",
			Sender:     "David",
			Recipients: []string{"Eve", "Frank"},
			Subject:    "API Endpoint Review",
			Body:       "Please review the proposed API endpoints for search and add operations. Doc attached.",
			Timestamp:  now.Add(-10 * time.Hour),
		},
		{
			ID:         "sample-005",
			Sender:     "Eve",
			Recipients: []string{"David"},
			Subject:    "Re: API Endpoint Review",
			Body:       "Looks logical. Suggest adding endpoints for Update and Delete as well.",
			Timestamp:  now.Add(-5 * time.Hour),
		},
		{
			ID:         "sample-006",
			Sender:     "Frank",
			Recipients: []string{"Alice", "Bob", "Charlie", "David", "Eve"},
			Subject:    "Team Lunch - Friday?",
			Body:       "Anyone free for a team lunch this Friday to celebrate the project start? Maybe somewhere near the Mars office?",
			Timestamp:  now.Add(-2 * time.Hour),
		},
	}
}
