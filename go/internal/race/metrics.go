// Package race holds the per-keystroke race engine: metrics, the keystroke
// controller and the preparation countdown.
package race

import (
	"math"
	"time"

	"github.com/mcdev12/typerace/go/internal/models"
)

// CharsPerWord is the standard word length used for WPM.
const CharsPerWord = 5

// Metrics is the result of a metrics computation.
type Metrics struct {
	WPM      int
	Accuracy int
	Errors   int
	Position int
}

// Stats converts the metrics to the wire stats shape.
func (m Metrics) Stats() models.Stats {
	return models.Stats{WPM: m.WPM, Accuracy: m.Accuracy, Errors: m.Errors}
}

// Compute derives metrics for typed against sample. started reports whether a
// first keystroke has been timestamped; elapsed is measured from it.
func Compute(sample, typed string, elapsed time.Duration, started bool) Metrics {
	return ComputeRunes([]rune(sample), []rune(typed), elapsed, started)
}

// ComputeRunes is Compute over rune slices. typed must not be longer than sample.
func ComputeRunes(sample, typed []rune, elapsed time.Duration, started bool) Metrics {
	position := len(typed)
	errors := 0
	for i, r := range typed {
		if i >= len(sample) || r != sample[i] {
			errors++
		}
	}

	accuracy := 100
	if position > 0 {
		accuracy = int(math.Round(float64(position-errors) / float64(position) * 100))
	}

	return Metrics{
		WPM:      wpm(position, elapsed, started),
		Accuracy: accuracy,
		Errors:   errors,
		Position: position,
	}
}

func wpm(position int, elapsed time.Duration, started bool) int {
	minutes := float64(elapsed.Milliseconds()) / 60000
	if !started || minutes <= 0 {
		return 0
	}
	words := math.Round(float64(position) / CharsPerWord)
	raw := words / minutes
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return 0
	}
	return int(math.Round(raw))
}
