package domain

// Payment statuses. pending is the only non-terminal one.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// StatusUnknown is reported by the client poller when it gives up. It is never stored.
const StatusUnknown = "unknown"

// Daraja STK result codes.
const (
	ResultCodeSuccess         = 0
	ResultCodeCancelledByUser = 1032
)

// CountryCode is the Kenyan international prefix used for MSISDNs.
const CountryCode = "254"

const ReceiptItemName = "MpesaReceiptNumber"

// IsTerminal reports whether a payment in status s can no longer change.
func IsTerminal(s string) bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// StatusForResultCode maps an STK callback result code to the payment status it resolves to.
func StatusForResultCode(code int) string {
	switch code {
	case ResultCodeSuccess:
		return StatusCompleted
	case ResultCodeCancelledByUser:
		return StatusCancelled
	default:
		return StatusFailed
	}
}
