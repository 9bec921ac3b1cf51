package notify

import (
	"fmt"
	"time"
)

// Party is a named email recipient.
type Party struct {
	Name  string
	Email string
}

const dateLayout = "Mon, 02 Jan 2006 15:04 MST"

// AppointmentRequested tells a doctor that a patient booked a slot.
func AppointmentRequested(doctor, patient Party, at time.Time, reason string) EmailMessage {
	body := fmt.Sprintf("Hello %s,\n\n%s requested an appointment on %s.", doctor.Name, patient.Name, at.UTC().Format(dateLayout))
	if reason != "" {
		body += "\nReason: " + reason
	}
	return EmailMessage{
		To:      doctor.Email,
		ToName:  doctor.Name,
		Subject: "New appointment request",
		Body:    body,
	}
}

// AppointmentCancelled tells the other party that an appointment was cancelled.
func AppointmentCancelled(to, by Party, at time.Time) EmailMessage {
	return EmailMessage{
		To:      to.Email,
		ToName:  to.Name,
		Subject: "Appointment cancelled",
		Body:    fmt.Sprintf("Hello %s,\n\nYour appointment on %s was cancelled by %s.", to.Name, at.UTC().Format(dateLayout), by.Name),
	}
}

// PaymentReceived is the receipt sent to a payer.
func PaymentReceived(to Party, amount float64, currency string) EmailMessage {
	return EmailMessage{
		To:      to.Email,
		ToName:  to.Name,
		Subject: "Payment received",
		Body:    fmt.Sprintf("Hello %s,\n\nWe received your payment of %.2f %s. Thank you.", to.Name, amount, currency),
	}
}
