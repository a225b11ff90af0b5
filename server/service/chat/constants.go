package chat

import "net/http"

// StatusIssue reports an unexpected error in a chat turn. It is not a standard
// HTTP status; clients of the relay rely on it.
const StatusIssue = 509

// Replies for terminal run states. They are shown to the user verbatim.
const (
	EmptyReplyMessage = "Da fällt mir im Moment gerade nichts zu ein (Leere Nachricht von der KI)."
	EndOfChatMessage  = "*ENDE DES CHATS*"
	ExpiredMessage    = "Entschuldigung, die Anfrage hat zu lange gedauert. Bitte versuche es noch einmal."
	FailedMessage     = "Entschuldigung, da ist bei mir etwas schiefgegangen. Bitte versuche es noch einmal."
)

// Turn outcomes reported to metrics.
const (
	OutcomeCompleted = "completed"
	OutcomeEmpty     = "empty"
	OutcomeCancelled = "cancelled"
	OutcomeExpired   = "expired"
	OutcomeFailed    = "failed"
	OutcomeUnknown   = "unknown_status"
	OutcomeError     = "error"
)

// Reply is the HTTP status and body returned for a chat turn.
type Reply struct {
	Status  int
	Body    string
	Outcome string
}

func okReply(body, outcome string) Reply {
	return Reply{Status: http.StatusOK, Body: body, Outcome: outcome}
}

func issueReply(err error) Reply {
	return Reply{Status: StatusIssue, Body: "*ISSUE* **" + err.Error() + "**", Outcome: OutcomeError}
}

func unknownStatusReply(status string) Reply {
	return Reply{Status: http.StatusInternalServerError, Body: "*ISSUE* **Run Status: " + status + "**", Outcome: OutcomeUnknown}
}
