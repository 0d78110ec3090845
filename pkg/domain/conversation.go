package domain

// ConversationStatus tracks the lifecycle of a live call.
type ConversationStatus string

const (
	ConversationIdle       ConversationStatus = "idle"
	ConversationConnecting ConversationStatus = "connecting"
	ConversationConnected  ConversationStatus = "connected"
	ConversationEnded      ConversationStatus = "ended"
)

// ConversationResource is the provisioned live-call resource for a session.
type ConversationResource struct {
	ConversationID string             `json:"conversation_id"`
	JoinURL        string             `json:"conversation_url"`
	Status         ConversationStatus `json:"status"`
}

// IdleConversation returns the zero resource.
func IdleConversation() ConversationResource {
	return ConversationResource{Status: ConversationIdle}
}
