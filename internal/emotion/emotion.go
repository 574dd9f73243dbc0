// Package emotion defines the closed set of mood labels used across the classifier.
package emotion

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownLabel is returned when a string does not name a known emotion.
var ErrUnknownLabel = errors.New("unknown emotion label")

// Label is an emotion class. The numeric value is the class code fed to and
// produced by the classifiers.
type Label uint8

// Known labels, in class-code order.
const (
	Happy Label = iota
	Sad
	Angry
	Calm
	Energetic
	Romantic
	Neutral
)

// Count is the number of known labels.
const Count = 7

// Default is returned whenever a prediction cannot be made.
const Default = Neutral

var names = [Count]string{
	Happy:     "happy",
	Sad:       "sad",
	Angry:     "angry",
	Calm:      "calm",
	Energetic: "energetic",
	Romantic:  "romantic",
	Neutral:   "neutral",
}

// All returns every label in class-code order.
func All() []Label {
	labels := make([]Label, Count)
	for i := range labels {
		labels[i] = Label(i)
	}
	return labels
}

// Valid reports whether l is one of the known labels.
func (l Label) Valid() bool {
	return l < Count
}

// Code returns the class code of the label.
func (l Label) Code() int {
	return int(l)
}

func (l Label) String() string {
	if !l.Valid() {
		return fmt.Sprintf("emotion(%d)", uint8(l))
	}
	return names[l]
}

// Parse returns the label named by s. Matching ignores case and surrounding whitespace.
func Parse(s string) (Label, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for i, name := range names {
		if name == key {
			return Label(i), nil
		}
	}
	return Default, fmt.Errorf("%w: %q", ErrUnknownLabel, s)
}

// FromCode maps a class code to its label. Codes outside the table map to
// Default and ok is false.
func FromCode(code int) (l Label, ok bool) {
	if code < 0 || code >= Count {
		return Default, false
	}
	return Label(code), true
}

// MarshalText implements encoding.TextMarshaler.
func (l Label) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("%w: code %d", ErrUnknownLabel, uint8(l))
	}
	return []byte(names[l]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Label) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
