package contracts

import "time"

// Note is one append-only entry in a note log. Inspections, responses, and
// corrective actions each carry their own log; entries are never edited or
// removed.
type Note struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}
