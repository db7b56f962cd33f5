package monitor

// ConditionKind names a classification of a reading. It doubles as the
// cooldown key.
type ConditionKind string

const (
	VoltageLow  ConditionKind = "voltage_low"
	VoltageHigh ConditionKind = "voltage_high"
	CurrentHigh ConditionKind = "current_high"
	PowerHigh   ConditionKind = "power_high"
	AllNormal   ConditionKind = "system_normal"

	// KindNotice marks system notices; they never pass through the deduplicator.
	KindNotice ConditionKind = "notice"
)

func (k ConditionKind) String() string {
	return string(k)
}

// Condition is one classification together with the value that triggered it.
type Condition struct {
	Kind  ConditionKind
	Value float64
}

// Evaluate classifies a reading against the thresholds. Rules are
// independent; AllNormal is produced only when none of them fire.
func Evaluate(r SensorReading, cfg ThresholdConfig) []Condition {
	var conds []Condition

	if r.Voltage < cfg.Voltage.Min {
		conds = append(conds, Condition{Kind: VoltageLow, Value: r.Voltage})
	} else if r.Voltage > cfg.Voltage.Max {
		conds = append(conds, Condition{Kind: VoltageHigh, Value: r.Voltage})
	}

	if r.Current > cfg.Current.Max {
		conds = append(conds, Condition{Kind: CurrentHigh, Value: r.Current})
	}

	if r.Power > cfg.Power.Max {
		conds = append(conds, Condition{Kind: PowerHigh, Value: r.Power})
	}

	if len(conds) == 0 {
		conds = append(conds, Condition{Kind: AllNormal})
	}

	return conds
}
