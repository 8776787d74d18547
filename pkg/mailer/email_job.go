package mailer

import "time"

// EmailJob is the JSON payload put on the RabbitMQ queue for sending email.
// Jobs carry fully rendered content; the worker only delivers.
type EmailJob struct {
	To         string    `json:"to"`
	Subject    string    `json:"subject"`
	HTML       string    `json:"html,omitempty"`
	Text       string    `json:"text,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

func (j EmailJob) Message() Message {
	return Message{To: j.To, Subject: j.Subject, HTML: j.HTML, Text: j.Text}
}
