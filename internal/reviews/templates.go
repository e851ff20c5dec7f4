package reviews

import (
	"fmt"
	"strings"

	"jobflow_backend/internal/crm"
	"jobflow_backend/internal/fieldmap"
)

// ComposeReviewRequest builds the outbound review request for the given
// channel. Unknown or empty channels fall back to SMS, the channel most
// customers respond to.
func ComposeReviewRequest(channel, firstName, jobType, reviewURL string) crm.Message {
	name := strings.TrimSpace(firstName)
	if name == "" {
		name = "there"
	}

	job := strings.TrimSpace(jobType)
	if job == "" {
		job = "recent job"
	}

	if strings.EqualFold(channel, fieldmap.ChannelEmail) {
		return crm.Message{
			Channel: fieldmap.ChannelEmail,
			Subject: "How did we do?",
			Body: fmt.Sprintf(
				"Hi %s,\n\nThanks for trusting us with your %s. If you have a minute, we'd really appreciate a quick review. It makes a big difference to a small business like ours.\n\n%s\n\nThanks again!",
				name, job, reviewURL,
			),
		}
	}

	return crm.Message{
		Channel: fieldmap.ChannelSMS,
		Body: fmt.Sprintf(
			"Hi %s, thanks for choosing us for your %s! We'd love to hear how we did. It only takes a minute: %s",
			name, job, reviewURL,
		),
	}
}
