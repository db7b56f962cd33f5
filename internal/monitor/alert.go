package monitor

import (
	"fmt"
	"time"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

type Alert struct {
	ID           string        `json:"id"`
	Kind         ConditionKind `json:"kind"`
	Message      string        `json:"message"`
	Severity     Severity      `json:"severity"`
	Timestamp    time.Time     `json:"timestamp"`
	Acknowledged bool          `json:"acknowledged"`
}

// describe returns the message and severity shown for a condition.
func describe(c Condition) (string, Severity) {
	switch c.Kind {
	case VoltageLow:
		return fmt.Sprintf("Low voltage detected: %.1fV", c.Value), SeverityError
	case VoltageHigh:
		return fmt.Sprintf("High voltage detected: %.1fV", c.Value), SeverityWarning
	case CurrentHigh:
		return fmt.Sprintf("Overcurrent detected: %.1fA", c.Value), SeverityError
	case PowerHigh:
		return fmt.Sprintf("High power consumption: %.0fW", c.Value), SeverityWarning
	case AllNormal:
		return "All parameters within normal range", SeveritySuccess
	default:
		return fmt.Sprintf("Condition %s", c.Kind), SeverityInfo
	}
}
