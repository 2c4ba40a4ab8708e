// Package mail delivers transactional email to users. The auth flows
// await delivery so failures surface in the request path.
package mail

import "context"

// Mailer delivers a formatted message to an email address.
type Mailer interface {
	Send(ctx context.Context, to, subject, text, html string) error
}
