package match

// Policy centralizes confidence thresholds for match classification.
type Policy struct {
	// DefaultThreshold applies to components that declare no threshold of
	// their own.
	DefaultThreshold float64
	// LowConfidenceBand is the width of the review band below a
	// component's threshold. Best matches inside the band are queued for
	// manual disposition instead of being discarded.
	LowConfidenceBand float64
}

// DefaultPolicy returns the thresholds used when a project declares nothing.
func DefaultPolicy() Policy {
	return Policy{
		DefaultThreshold:  0.90,
		LowConfidenceBand: 0.05,
	}
}

func (p Policy) normalized() Policy {
	d := DefaultPolicy()
	if p.DefaultThreshold <= 0 || p.DefaultThreshold > 1 {
		p.DefaultThreshold = d.DefaultThreshold
	}
	if p.LowConfidenceBand <= 0 || p.LowConfidenceBand >= 1 {
		p.LowConfidenceBand = d.LowConfidenceBand
	}
	return p
}

// thresholdFor resolves the effective threshold for a component.
func (p Policy) thresholdFor(c Component) float64 {
	if c.ConfidenceThreshold > 0 && c.ConfidenceThreshold <= 1 {
		return c.ConfidenceThreshold
	}
	return p.DefaultThreshold
}

// reviewFloor returns the lower bound of the review band for a threshold,
// clamped at zero.
func (p Policy) reviewFloor(threshold float64) float64 {
	floor := threshold - p.LowConfidenceBand
	if floor < 0 {
		floor = 0
	}
	return floor
}
