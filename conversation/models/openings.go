package models

// Well-known domains. Anything else is an NLU-owned domain the router
// passes through opaquely.
const (
	DomainOpening  = "opening"
	DomainRestart  = "restart"
	DomainPlatform = "platform"
)

// openingText is the canned first message shown when a conversation starts,
// restarts, or enters a domain that produced no text of its own.
var openingText = []string{
	"Hi! Welcome to Grassroot. I can help you find services, look up " +
		"information, or take action with your community. What would you " +
		"like to do?",
}

// openingMenu offers the top-level choices alongside the opening text.
var (
	openingMenuPayload = []string{"find_services", "find_knowledge", "take_action"}
	openingMenuText    = []string{"Find a service near you", "Look up information", "Take action"}
)

// domainOpenings are per-domain canned openings used when a domain is
// entered without the collaborator supplying text.
var domainOpenings = map[string][]string{
	"service":   {"Welcome to the service finder. Tell me what kind of help you are looking for, like a clinic or a shelter."},
	"knowledge": {"Welcome to Grassroot knowledge. Ask me a question and I will look it up for you."},
	"action":    {"Welcome to Grassroot Actions. Here you can set meetings, call votes, and organise with your community. What would you like to do?"},
}

// OpeningReply is the canonical reply for a fresh conversation.
func OpeningReply(senderID string) *Reply {
	return NewMenuReply(senderID, DomainOpening, openingText, openingMenuPayload, openingMenuText)
}

// RestartReply is the reply after an explicit or inferred restart. The
// restart domain marks that any in-flight platform entity is dropped.
func RestartReply(senderID string) *Reply {
	return NewMenuReply(senderID, DomainRestart, openingText, openingMenuPayload, openingMenuText)
}

// DomainOpeningReply returns the canned opening for a domain, falling back
// to the canonical opening when the domain has none.
func DomainOpeningReply(senderID, domain string) *Reply {
	if msgs, ok := domainOpenings[domain]; ok {
		return NewReply(senderID, domain, msgs)
	}
	return OpeningReply(senderID)
}
