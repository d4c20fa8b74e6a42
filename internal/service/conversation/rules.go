package conversation

import (
	"fmt"
	"strings"
	"time"
)

// WeatherSnapshot holds the canned weather values used by the weather rule.
type WeatherSnapshot struct {
	Temperature string
	Condition   string
}

// Responder turns a user utterance into a reply via a fixed, priority-ordered
// rule table. First match wins; matching is a case-insensitive substring
// check. Given the same input (and clock), the reply is always the same.
type Responder struct {
	assistantName string
	weather       WeatherSnapshot
	now           func() time.Time
}

// NewResponder builds a Responder. A nil clock defaults to time.Now.
func NewResponder(assistantName string, weather WeatherSnapshot, now func() time.Time) *Responder {
	if now == nil {
		now = time.Now
	}
	return &Responder{
		assistantName: assistantName,
		weather:       weather,
		now:           now,
	}
}

type rule struct {
	keywords []string
	reply    func(r *Responder, input, username string) string
}

// Priority order is fixed: an input mentioning both "weather" and "time"
// resolves to the weather reply.
var rules = []rule{
	{
		keywords: []string{"weather"},
		reply: func(r *Responder, _, _ string) string {
			return fmt.Sprintf("The current temperature is %s and conditions are %s.",
				r.weather.Temperature, r.weather.Condition)
		},
	},
	{
		keywords: []string{"time"},
		reply: func(r *Responder, _, _ string) string {
			return fmt.Sprintf("The current time is %s.", r.now().Format("03:04 PM"))
		},
	},
	{
		keywords: []string{"hello", "hi"},
		reply: func(_ *Responder, _, username string) string {
			return fmt.Sprintf("Hello %s. How can I assist you today?", username)
		},
	},
	{
		keywords: []string{"name"},
		reply: func(r *Responder, _, _ string) string {
			return fmt.Sprintf("I am %s, your personal AI assistant.", r.assistantName)
		},
	},
	{
		keywords: []string{"help"},
		reply: func(_ *Responder, _, _ string) string {
			return "I can help you with checking the weather, time, or setting reminders. What would you like to do?"
		},
	},
}

// Respond computes the assistant's reply to input for username.
func (r *Responder) Respond(input, username string) string {
	lowered := strings.ToLower(input)
	for _, rule := range rules {
		for _, keyword := range rule.keywords {
			if strings.Contains(lowered, keyword) {
				return rule.reply(r, input, username)
			}
		}
	}
	return fmt.Sprintf("I processed your request: \"%s\". How can I assist you further?", input)
}

// Greeting is the automatic assistant turn emitted when a conversation opens.
func (r *Responder) Greeting(username string) string {
	return fmt.Sprintf("Welcome back, %s.", username)
}
