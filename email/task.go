package email

import (
	"github.com/arjunv/chronoq/parser"
)

// Task represents a single email send: the recipient merged with a
// rendered body, plus the headers and attachments SendWithClient needs to
// build the wire message.
type Task struct {
	Recipient   parser.Recipient
	Subject     string
	Body        string
	Retries     int
	Attachments []string
	CC          []string
	BCC         []string
}
