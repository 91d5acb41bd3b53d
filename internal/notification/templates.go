package notification

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/Freeeeeet/lesson_scheduler/internal/model"
)

type templateData struct {
	RecipientName   string
	CounterpartName string
	When            string
	Duration        string
	Amount          string
	MeetingLink     string
	Notes           string
}

type messageTemplate struct {
	subject string
	email   *template.Template
	chat    *template.Template
}

const emailLayout = `<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
<h1 style="color: #e07856;">{{template "title" .}}</h1>
<p>Hi {{.RecipientName}},</p>
{{template "body" .}}
<p>Best regards,<br>The Lessons Team</p>
</div>`

func mustTemplate(name, layout, title, body string) *template.Template {
	t := template.Must(template.New(name).Parse(layout))
	template.Must(t.New("title").Parse(title))
	template.Must(t.New("body").Parse(body))
	return t
}

var (
	createdForTutor = messageTemplate{
		subject: "New Lesson Request",
		email: mustTemplate("created", emailLayout, "New Lesson Request", `
<p>You have a new lesson request from {{.CounterpartName}}.</p>
<div style="background-color: #f5f5f5; padding: 20px; border-radius: 8px; margin: 20px 0;">
<p><strong>Date &amp; Time:</strong> {{.When}}</p>
<p><strong>Duration:</strong> {{.Duration}}</p>
{{if .Notes}}<p><strong>Notes:</strong> {{.Notes}}</p>{{end}}
</div>`),
		chat: template.Must(template.New("created_chat").Parse(
			`<b>New lesson request</b> from {{.CounterpartName}}
{{.When}}, {{.Duration}}{{if .Notes}}
{{.Notes}}{{end}}`)),
	}

	confirmedForStudent = messageTemplate{
		subject: "Your Lesson is Confirmed!",
		email: mustTemplate("confirmed", emailLayout, "Lesson Confirmed!", `
<p>Great news! Your lesson with {{.CounterpartName}} has been confirmed.</p>
<div style="background-color: #f5f5f5; padding: 20px; border-radius: 8px; margin: 20px 0;">
<p><strong>Date &amp; Time:</strong> {{.When}}</p>
<p><strong>Duration:</strong> {{.Duration}}</p>
{{if .Amount}}<p><strong>Paid:</strong> {{.Amount}}</p>{{end}}
{{if .MeetingLink}}<p><strong>Meeting Link:</strong> <a href="{{.MeetingLink}}" style="color: #e07856;">{{.MeetingLink}}</a></p>{{end}}
</div>`),
		chat: template.Must(template.New("confirmed_chat").Parse(
			`<b>Lesson confirmed</b> with {{.CounterpartName}}
{{.When}}, {{.Duration}}{{if .MeetingLink}}
{{.MeetingLink}}{{end}}`)),
	}

	cancelled = messageTemplate{
		subject: "Lesson Cancelled",
		email: mustTemplate("cancelled", emailLayout, "Lesson Cancelled", `
<p>Unfortunately, your lesson with {{.CounterpartName}} scheduled for {{.When}} has been cancelled.</p>
<p>The time slot is free again and another lesson can be booked at any time.</p>`),
		chat: template.Must(template.New("cancelled_chat").Parse(
			`<b>Lesson cancelled</b> with {{.CounterpartName}}
{{.When}}`)),
	}
)

func templateFor(eventType model.EventType) (messageTemplate, error) {
	switch eventType {
	case model.EventBookingCreated:
		return createdForTutor, nil
	case model.EventBookingConfirmed:
		return confirmedForStudent, nil
	case model.EventBookingCancelled:
		return cancelled, nil
	default:
		return messageTemplate{}, fmt.Errorf("no template for event %q", eventType)
	}
}

// render собирает сообщение для получателя
func render(event model.BookingEvent, recipient, counterpart *model.Profile, counterpartFallback string) (Message, error) {
	tmpl, err := templateFor(event.Type)
	if err != nil {
		return Message{}, err
	}

	b := event.Booking
	data := templateData{
		RecipientName:   displayName(recipient, "there"),
		CounterpartName: displayName(counterpart, counterpartFallback),
		When:            FormatDateTime(b.ScheduledAt, recipient.Location()),
		Duration:        FormatDuration(b.DurationMinutes),
		Notes:           b.Notes,
	}
	if b.AmountPaidCents > 0 && b.PaymentStatus == model.PaymentStatusPaid {
		data.Amount = FormatPrice(b.AmountPaidCents)
	}
	if b.MeetingLink != nil {
		data.MeetingLink = *b.MeetingLink
	}

	var html, text bytes.Buffer
	if err := tmpl.email.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("render email: %w", err)
	}
	if err := tmpl.chat.Execute(&text, data); err != nil {
		return Message{}, fmt.Errorf("render chat message: %w", err)
	}

	return Message{
		Event:     event,
		Recipient: *recipient,
		Subject:   tmpl.subject,
		HTML:      html.String(),
		Text:      text.String(),
	}, nil
}

func displayName(p *model.Profile, fallback string) string {
	if p == nil || p.FullName == "" {
		return fallback
	}
	return p.FullName
}
