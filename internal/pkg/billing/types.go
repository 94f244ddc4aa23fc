package billing

// Provider tag stored on every audit row. There is only one payment provider
// today, but the column keeps a second one from requiring a schema change.
const ProviderAbacatePay = "abacatepay"

// Known webhook event types. Everything else lands in the explicit unknown
// arm of the processor.
const (
	EventBillingPaid    = "billing.paid"
	EventWithdrawDone   = "withdraw.done"
	EventWithdrawFailed = "withdraw.failed"
)

// Access types carried in checkout metadata.
const (
	AccessTypeSubscription = "SUBSCRIPTION"
	AccessTypePurchase     = "PURCHASE"
)
