package carinfo

import (
	"fmt"

	"google.golang.org/genai"

	"github.com/abdhe/carscout/pkg/provider"
)

func ratingsPrompt(car string) string {
	return fmt.Sprintf(`Provide car ratings for the %s in a JSON object. The JSON should have a "make", "model", and "year" string. `+
		`It should also have a "ratings" array. Each object in the "ratings" array should have a "source" string `+
		`(e.g., "Euro NCAP", "IIHS", "J.D. Power"), a "type" string (e.g., "Safety", "Reliability"), and a "score" string `+
		`(e.g., "5 Stars", "Good", "85/100"). Make up realistic but varied scores and sources.`, car)
}

func descriptionPrompt(car string) string {
	return fmt.Sprintf("Write a brief, interesting summary (about 3-4 sentences) about the history and key features of the %s.", car)
}

func prosConsPrompt(car string) string {
	return fmt.Sprintf(`Generate a JSON object with two arrays, "pros" and "cons", for the %s. `+
		`Each array should contain 3-5 strings describing the strengths and weaknesses of the car.`, car)
}

func stringSchema() *genai.Schema {
	return &genai.Schema{Type: genai.TypeString}
}

// RatingsSchema describes the CarRatings JSON shape.
func RatingsSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"make":  stringSchema(),
			"model": stringSchema(),
			"year":  stringSchema(),
			"ratings": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"source": stringSchema(),
						"type":   stringSchema(),
						"score":  stringSchema(),
					},
				},
			},
		},
	}
}

// ProsConsSchema describes the ProsCons JSON shape.
func ProsConsSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"pros": {Type: genai.TypeArray, Items: stringSchema()},
			"cons": {Type: genai.TypeArray, Items: stringSchema()},
		},
	}
}

// request returns the prompt and generation config for op.
func request(op Operation, car string) (string, *provider.GenerationConfig) {
	switch op {
	case OpRatings:
		return ratingsPrompt(car), provider.JSONConfig(RatingsSchema())
	case OpProsCons:
		return prosConsPrompt(car), provider.JSONConfig(ProsConsSchema())
	default:
		return descriptionPrompt(car), nil
	}
}
