package classifier

import (
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/xiongtingping/wenpai-sub001/internal/metrics"
	"github.com/xiongtingping/wenpai-sub001/internal/models"
)

// Classify maps the raw status vocabulary of the payment gateway onto the
// canonical lifecycle states. Anything unrecognized classifies as Pending:
// vocabulary drift on the gateway side must never push a checkout into a
// terminal state.
func Classify(rawStatus string) models.LifecycleState {
	switch strings.ToLower(strings.TrimSpace(rawStatus)) {
	case "paid", "completed", "complete", "success", "succeeded":
		return models.StatePaid
	case "pending", "created", "new":
		return models.StatePending
	case "processing", "in_progress":
		return models.StateProcessing
	case "failed", "failure", "error":
		return models.StateFailed
	case "cancelled", "canceled":
		return models.StateCancelled
	case "expired", "timeout":
		return models.StateExpired
	default:
		logrus.Warnf("unrecognized gateway status %q, classifying as pending", rawStatus)
		metrics.ClassifierAnomaliesTotal.WithLabelValues(rawStatus).Inc()
		return models.StatePending
	}
}

// Describe returns the user-facing message for a classified state.
func Describe(state models.LifecycleState) string {
	switch state {
	case models.StatePending:
		return "Waiting for payment"
	case models.StateProcessing:
		return "Payment is being processed"
	case models.StatePaid:
		return "Payment received"
	case models.StateFailed:
		return "Payment failed"
	case models.StateExpired:
		return "Payment expired"
	case models.StateCancelled:
		return "Payment cancelled"
	default:
		return "Unknown payment status"
	}
}
