package hdrhistogram

// RecordCorrectedValue records v, then -- when expectedInterval > 0 and
// v exceeds it -- backfills the synthetic observations a caller blocked on
// a slow event would otherwise have missed (§4.4): v is recorded first,
// followed by v-expectedInterval, v-2*expectedInterval, ... down to the
// smallest such value that is still >= expectedInterval. When v >=
// expectedInterval the total number of records added is
// floor(v/expectedInterval); otherwise only v itself is recorded.
func (h *Histogram) RecordCorrectedValue(v, expectedInterval int64) error {
	return h.recordCorrectedValues(v, 1, expectedInterval)
}

// RecordValuesCorrected is the count-aware form of RecordCorrectedValue:
// it records count occurrences of v, each independently corrected for
// coordinated omission.
func (h *Histogram) RecordValuesCorrected(v, count, expectedInterval int64) error {
	return h.recordCorrectedValues(v, count, expectedInterval)
}

func (h *Histogram) recordCorrectedValues(v, count, expectedInterval int64) error {
	if err := h.RecordValues(v, count); err != nil {
		return err
	}
	if expectedInterval <= 0 || v <= expectedInterval {
		return nil
	}
	for missingValue := v - expectedInterval; missingValue >= expectedInterval; missingValue -= expectedInterval {
		if err := h.RecordValues(missingValue, count); err != nil {
			return err
		}
	}
	return nil
}
