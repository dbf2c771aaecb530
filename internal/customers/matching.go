package customers

import (
	"context"
	"errors"
	"strings"
)

// Match attempts to link a sale to an existing active customer from the
// hints the POS screen collected. Precedence is fixed: exact phone, then
// exact email, then case-insensitive exact name. Partial and phonetic
// matching are deliberately not attempted; an ambiguous hint is better
// left unlinked than linked to the wrong person.
func (s *Service) Match(ctx context.Context, hint MatchHint) (Customer, error) {
	if phone := NormalizePhone(hint.Phone); phone != "" {
		c, err := s.repo.FindActiveByPhone(ctx, phone)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return Customer{}, err
		}
	}
	if email := strings.ToLower(strings.TrimSpace(hint.Email)); email != "" {
		c, err := s.repo.FindActiveByEmail(ctx, email)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return Customer{}, err
		}
	}
	if name := strings.TrimSpace(hint.Name); name != "" {
		c, err := s.repo.FindActiveByName(ctx, name)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return Customer{}, err
		}
	}
	return Customer{}, ErrNoMatch
}
