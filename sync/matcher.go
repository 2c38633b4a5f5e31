// ABOUTME: Email matching helpers for routing a batch of candidates
// ABOUTME: Normalizes emails and indexes the last occurrence of each within a batch
package sync

import (
	"strings"

	"github.com/clear-match/clearmatch/models"
)

// emailIndex records, for one batch, where each normalized email last appears.
type emailIndex struct {
	last   map[string]int
	emails []string
}

// newEmailIndex indexes candidates by normalized personal email. Candidates without an
// email are not indexed. Emails are kept in first-seen order for the storage lookup.
func newEmailIndex(candidates []*models.Candidate) *emailIndex {
	idx := &emailIndex{
		last:   make(map[string]int, len(candidates)),
		emails: make([]string, 0, len(candidates)),
	}
	for i, c := range candidates {
		email := normalizeEmail(c.PersonalEmail)
		if email == "" {
			continue
		}
		if _, seen := idx.last[email]; !seen {
			idx.emails = append(idx.emails, email)
		}
		idx.last[email] = i
	}
	return idx
}

// Emails returns the distinct normalized emails of the batch.
func (idx *emailIndex) Emails() []string {
	return idx.emails
}

// Wins reports whether position i holds the last occurrence of email.
func (idx *emailIndex) Wins(email string, i int) bool {
	last, ok := idx.last[email]
	return ok && last == i
}

// normalizeEmail converts email to lowercase for comparison.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
