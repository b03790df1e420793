// Package carinfo looks up ratings, a description and pros/cons for a car
// model by prompting the generation client.
package carinfo

import (
	"errors"
	"strings"

	"github.com/abdhe/carscout/pkg/provider"
	"github.com/abdhe/carscout/pkg/resilience"
)

// Rating is a single score from one rating body.
type Rating struct {
	Source string `json:"source"`
	Type   string `json:"type"`
	Score  string `json:"score"`
}

// CarRatings is the structured ratings answer for a car model.
type CarRatings struct {
	Make    string   `json:"make"`
	Model   string   `json:"model"`
	Year    string   `json:"year"`
	Ratings []Rating `json:"ratings"`
}

// Title formats the heading shown above the ratings, e.g. "2021 Honda Civic".
func (c *CarRatings) Title() string {
	return strings.TrimSpace(strings.Join([]string{c.Year, c.Make, c.Model}, " "))
}

// ProsCons lists strengths and weaknesses of a car model.
type ProsCons struct {
	Pros []string `json:"pros"`
	Cons []string `json:"cons"`
}

// Overview bundles every lookup for one car.
type Overview struct {
	Ratings     *CarRatings `json:"ratings"`
	Description string      `json:"description"`
	ProsCons    *ProsCons   `json:"prosCons"`
}

// Operation names a lookup kind; used for cache keys, metrics and logs.
type Operation string

const (
	OpRatings     Operation = "ratings"
	OpDescription Operation = "description"
	OpProsCons    Operation = "pros_cons"
)

var (
	// ErrEmptyQuery is returned when no car model was given.
	ErrEmptyQuery = errors.New("carinfo: empty car query")

	// ErrNoRatings is returned when the model answered with an empty ratings list.
	ErrNoRatings = errors.New("carinfo: no ratings found")
)

// User-facing messages.
const (
	MsgEmptyQuery  = "Please enter a car model to search."
	MsgNoRatings   = "No ratings found for that car model."
	MsgExhausted   = "Failed to fetch data after multiple retries."
	MsgUnavailable = "The rating service is temporarily unavailable. Please try again shortly."
	MsgUnreadable  = "The model returned an answer that could not be read."
)

// UserMessage maps err to the single line shown to an end user.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyQuery):
		return MsgEmptyQuery
	case errors.Is(err, ErrNoRatings):
		return MsgNoRatings
	case errors.Is(err, provider.ErrRetriesExhausted):
		return MsgExhausted
	case errors.Is(err, resilience.ErrCircuitOpen):
		return MsgUnavailable
	default:
		var perr *provider.ParseError
		if errors.As(err, &perr) {
			return MsgUnreadable
		}
		return err.Error()
	}
}
