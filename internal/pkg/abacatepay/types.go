package abacatepay

// Event is the outer envelope of every AbacatePay webhook delivery.
type Event struct {
	ID   string    `json:"id"`
	Type string    `json:"type"`
	Data EventData `json:"data"`
}

// EventData carries the type-specific payload of an event.
type EventData struct {
	TransactionID  string        `json:"transactionId"`
	SubscriptionID string        `json:"subscriptionId"`
	AmountCents    int64         `json:"amount"`
	Metadata       EventMetadata `json:"metadata"`
}

// EventMetadata is attached by us at checkout time and echoed back by the
// provider on every event for that billing.
type EventMetadata struct {
	UserID      string `json:"userId"`
	UserEmail   string `json:"userEmail"`
	Type        string `json:"type"` // SUBSCRIPTION or PURCHASE
	PlanType    string `json:"planType,omitempty"`
	DiscordLink string `json:"discordLink,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	ContentID   string `json:"contentId,omitempty"`
}

// CheckoutRequest creates a one-off billing at AbacatePay.
type CheckoutRequest struct {
	Frequency     string        `json:"frequency"`
	Methods       []string      `json:"methods"`
	AmountCents   int64         `json:"amount"`
	Description   string        `json:"description"`
	ReturnURL     string        `json:"returnUrl"`
	CompletionURL string        `json:"completionUrl"`
	Metadata      EventMetadata `json:"metadata"`
}

// CheckoutResponse is the provider's answer to a checkout or subscription
// creation call.
type CheckoutResponse struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Status string `json:"status"`
}
