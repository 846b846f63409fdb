package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/casavisita/platform/pkg/logging"
)

// Visit carries everything a booking email may mention. Callers fill the
// fields relevant to the template; empty recipients are skipped.
type Visit struct {
	ClientName    string
	ClientEmail   string
	AgentName     string
	AgentEmail    string
	OwnerName     string
	OwnerEmail    string
	AgencyName    string
	AgencyEmail   string
	ResidenceName string
	Date          string // dd-mm-yyyy
	Hour          float64
	Notes         string
}

// Notifier renders and sends the protocol's emails. Every method is a single
// fire-and-forget send; callers decide whether a failure matters.
type Notifier struct {
	sender  EmailSender
	baseURL string
	logger  *logging.Logger
}

func NewNotifier(sender EmailSender, baseURL string, logger *logging.Logger) *Notifier {
	if logger == nil {
		logger = logging.Default()
	}
	return &Notifier{
		sender:  sender,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger.Component("notify"),
	}
}

// FormatDate renders a dd-mm-yyyy date as "2 January 2006" for email bodies.
func FormatDate(date string) string {
	t, err := time.Parse("02-01-2006", date)
	if err != nil {
		return date
	}
	return t.Format("2 January 2006")
}

// FormatHour renders a fractional hour as HH:MM.
func FormatHour(hour float64) string {
	h := int(hour)
	m := int((hour - float64(h)) * 60)
	return fmt.Sprintf("%02d:%02d", h, m)
}

func (n *Notifier) statusLink(token string) string {
	return fmt.Sprintf("%s/appointments/status?token=%s", n.baseURL, token)
}

func (n *Notifier) rescheduleLink(token string) string {
	return fmt.Sprintf("%s/appointments/reschedule?token=%s", n.baseURL, token)
}

func (n *Notifier) send(ctx context.Context, to, toName, subject, body string) error {
	if to == "" {
		n.logger.Warn("notification skipped, no recipient", "subject", subject)
		return nil
	}
	return n.sender.Send(ctx, EmailMessage{To: to, ToName: toName, Subject: subject, Body: body})
}

func (n *Notifier) visitLine(v Visit) string {
	return fmt.Sprintf("%s on %s at %s", v.ResidenceName, FormatDate(v.Date), FormatHour(v.Hour))
}

// SendNewAppointment asks the assigned agent to confirm a fresh request.
func (n *Notifier) SendNewAppointment(ctx context.Context, v Visit, confirmToken, cancelToken, rescheduleToken string) error {
	body := fmt.Sprintf(`Hello %s,

%s requested a viewing of %s.

Confirm: %s
Decline: %s
Propose another time: %s
`,
		v.AgentName, v.ClientName, n.visitLine(v),
		n.statusLink(confirmToken), n.statusLink(cancelToken), n.rescheduleLink(rescheduleToken))
	if v.Notes != "" {
		body += "\nNotes from the client: " + v.Notes + "\n"
	}
	return n.send(ctx, v.AgentEmail, v.AgentName, "New viewing request: "+v.ResidenceName, body)
}

// SendReceivedAppointment tells the agency a request came in through its widget.
func (n *Notifier) SendReceivedAppointment(ctx context.Context, v Visit) error {
	body := fmt.Sprintf(`A new viewing request was received for %s.

Client: %s (%s)
Assigned agent: %s
`, n.visitLine(v), v.ClientName, v.ClientEmail, v.AgentName)
	return n.send(ctx, v.AgencyEmail, v.AgencyName, "Viewing request received: "+v.ResidenceName, body)
}

// SendOwnerConfirmationRequest asks the property owner to approve the visit.
func (n *Notifier) SendOwnerConfirmationRequest(ctx context.Context, v Visit, confirmToken, cancelToken string) error {
	body := fmt.Sprintf(`Hello %s,

Agent %s would like to show your property %s.

Approve: %s
Decline: %s
`,
		v.OwnerName, v.AgentName, n.visitLine(v),
		n.statusLink(confirmToken), n.statusLink(cancelToken))
	return n.send(ctx, v.OwnerEmail, v.OwnerName, "Viewing approval needed: "+v.ResidenceName, body)
}

// SendAcceptedByOwner asks the client for the final confirmation.
func (n *Notifier) SendAcceptedByOwner(ctx context.Context, v Visit, confirmToken, cancelToken string) error {
	body := fmt.Sprintf(`Hello %s,

Your viewing of %s has been approved.

Confirm your attendance: %s
Cancel: %s
`,
		v.ClientName, n.visitLine(v),
		n.statusLink(confirmToken), n.statusLink(cancelToken))
	return n.send(ctx, v.ClientEmail, v.ClientName, "Your viewing was approved: "+v.ResidenceName, body)
}

// SendClientRejected tells the client the visit will not happen.
func (n *Notifier) SendClientRejected(ctx context.Context, v Visit) error {
	body := fmt.Sprintf(`Hello %s,

Unfortunately your viewing of %s cannot take place. Please book a new time through the agency's page.
`, v.ClientName, n.visitLine(v))
	return n.send(ctx, v.ClientEmail, v.ClientName, "Viewing canceled: "+v.ResidenceName, body)
}

// SendClientReschedule offers the client a new time picked by the agent.
func (n *Notifier) SendClientReschedule(ctx context.Context, v Visit, rescheduleToken, cancelToken string) error {
	body := fmt.Sprintf(`Hello %s,

The agent proposed a new time for your viewing: %s.

Accept the new time: %s
Cancel the viewing: %s
`,
		v.ClientName, n.visitLine(v),
		n.statusLink(rescheduleToken), n.statusLink(cancelToken))
	return n.send(ctx, v.ClientEmail, v.ClientName, "New time proposed: "+v.ResidenceName, body)
}

// SendCanceledByOwner informs client and agent that the owner declined.
func (n *Notifier) SendCanceledByOwner(ctx context.Context, v Visit) error {
	body := fmt.Sprintf(`The owner declined the viewing of %s.
`, n.visitLine(v))
	if err := n.send(ctx, v.ClientEmail, v.ClientName, "Viewing declined by owner: "+v.ResidenceName, "Hello "+v.ClientName+",\n\n"+body); err != nil {
		return err
	}
	return n.send(ctx, v.AgentEmail, v.AgentName, "Viewing declined by owner: "+v.ResidenceName, "Hello "+v.AgentName+",\n\n"+body)
}

// SendClientCancellation informs agent and owner that the client pulled out.
func (n *Notifier) SendClientCancellation(ctx context.Context, v Visit) error {
	body := fmt.Sprintf(`%s canceled the viewing of %s.
`, v.ClientName, n.visitLine(v))
	if err := n.send(ctx, v.AgentEmail, v.AgentName, "Viewing canceled by client: "+v.ResidenceName, body); err != nil {
		return err
	}
	return n.send(ctx, v.OwnerEmail, v.OwnerName, "Viewing canceled by client: "+v.ResidenceName, body)
}

// SendClientRescheduleCancellation tells the agent the client declined the
// proposed alternative.
func (n *Notifier) SendClientRescheduleCancellation(ctx context.Context, v Visit) error {
	body := fmt.Sprintf(`%s declined the proposed new time for %s. The viewing is off.
`, v.ClientName, n.visitLine(v))
	return n.send(ctx, v.AgentEmail, v.AgentName, "Proposed time declined: "+v.ResidenceName, body)
}

// SendReminderClient is the day-before nudge with fresh confirm/cancel links.
func (n *Notifier) SendReminderClient(ctx context.Context, v Visit, confirmToken, cancelToken string) error {
	body := fmt.Sprintf(`Hello %s,

A reminder of your viewing tomorrow: %s.

Confirm: %s
Cancel: %s
`,
		v.ClientName, n.visitLine(v),
		n.statusLink(confirmToken), n.statusLink(cancelToken))
	return n.send(ctx, v.ClientEmail, v.ClientName, "Reminder: viewing tomorrow at "+FormatHour(v.Hour), body)
}

// SendReminderAgentOwner mirrors the client reminder to the agent side.
func (n *Notifier) SendReminderAgentOwner(ctx context.Context, v Visit) error {
	body := fmt.Sprintf(`Reminder: %s is scheduled to view %s.
`, v.ClientName, n.visitLine(v))
	if err := n.send(ctx, v.AgentEmail, v.AgentName, "Reminder: viewing tomorrow", body); err != nil {
		return err
	}
	if v.OwnerEmail != "" && v.OwnerEmail != v.AgencyEmail {
		return n.send(ctx, v.OwnerEmail, v.OwnerName, "Reminder: viewing tomorrow", body)
	}
	return nil
}
