package template

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/kursadbilgin/tutor-notifier/internal/domain"
)

var greetingWords = map[string]struct{}{
	"hi":        {},
	"hello":     {},
	"hey":       {},
	"dear":      {},
	"greetings": {},
}

func (r *Registry) fallback(channel domain.Channel, v Values) domain.RenderedMessage {
	message := strings.TrimSpace(v.String(MessageParam))
	signature := r.signature()

	if !startsWithGreeting(message) && !strings.Contains(strings.ToLower(message), strings.ToLower(signature)) {
		greeting := fmt.Sprintf("Hi %s,", v.String("userName"))
		if channel == domain.ChannelEmail {
			message = fmt.Sprintf("%s\n\n%s\n\nRegards,\n%s", greeting, message, signature)
		} else {
			message = fmt.Sprintf("%s %s - %s", greeting, message, signature)
		}
	}

	msg := domain.RenderedMessage{Body: message}
	if channel == domain.ChannelEmail {
		msg.Subject = v.String(SubjectParam)
		if msg.Subject == "" {
			msg.Subject = r.brand + " notification"
		}
	}
	return msg
}

func (r *Registry) signature() string {
	return "Team " + r.brand
}

func startsWithGreeting(message string) bool {
	words := strings.FieldsFunc(message, func(c rune) bool {
		return !unicode.IsLetter(c)
	})
	if len(words) == 0 {
		return false
	}
	_, ok := greetingWords[strings.ToLower(words[0])]
	return ok
}
