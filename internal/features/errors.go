package features

import (
	"errors"
	"fmt"
	"strings"
)

// UnknownSensorError marks a reading whose sensor id is outside the frozen
// vocabulary. Skip-class: the row is dropped, the batch survives.
type UnknownSensorError struct {
	SensorID string
}

func (e *UnknownSensorError) Error() string {
	return fmt.Sprintf("sensor %q is not in the vocabulary", e.SensorID)
}

// InsufficientHistoryError marks a reading with fewer prior values than the
// lag features require. Skip-class: the sensor sits out this cycle only.
type InsufficientHistoryError struct {
	SensorID string
	Have     int
	Need     int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("sensor %q has %d prior values, need %d", e.SensorID, e.Have, e.Need)
}

// SchemaMismatchError marks a column set that diverges from the frozen
// training schema. Abort-class: the whole batch is discarded.
type SchemaMismatchError struct {
	Want []string
	Got  []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("feature schema mismatch: want %d columns [%s], got %d columns [%s]",
		len(e.Want), abbreviate(e.Want), len(e.Got), abbreviate(e.Got))
}

// IsSkip reports whether an encode error means "drop this row and keep
// going" as opposed to aborting the batch.
func IsSkip(err error) bool {
	var unknown *UnknownSensorError
	var short *InsufficientHistoryError
	return errors.As(err, &unknown) || errors.As(err, &short)
}

func abbreviate(cols []string) string {
	const max = 6
	if len(cols) <= max {
		return strings.Join(cols, " ")
	}
	return strings.Join(cols[:max], " ") + " ..."
}
