package template

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/kursadbilgin/tutor-notifier/internal/domain"
	"github.com/valyala/fasttemplate"
)

const (
	tagStart = "{{"
	tagEnd   = "}}"

	// MessageParam carries a raw message used by the generic fallback.
	MessageParam = "message"
	// SubjectParam overrides the fallback email subject.
	SubjectParam = "subject"
)

// RenderFunc renders one channel of a template.
type RenderFunc func(v Values) domain.RenderedMessage

// Definition declares a named template and its per-channel renderings.
type Definition struct {
	Name     string
	Channels map[domain.Channel]RenderFunc
}

// MustText compiles subject and body into a RenderFunc that performs plain
// {{tag}} substitution. It panics on malformed templates.
func MustText(subject string, body string) RenderFunc {
	var subjectTpl *fasttemplate.Template
	if subject != "" {
		subjectTpl = fasttemplate.New(subject, tagStart, tagEnd)
	}
	bodyTpl := fasttemplate.New(body, tagStart, tagEnd)

	return func(v Values) domain.RenderedMessage {
		tag := func(w io.Writer, name string) (int, error) {
			return w.Write([]byte(v.String(name)))
		}

		msg := domain.RenderedMessage{Body: bodyTpl.ExecuteFuncString(tag)}
		if subjectTpl != nil {
			msg.Subject = subjectTpl.ExecuteFuncString(tag)
		}
		return msg
	}
}

// Registry is an immutable template lookup built once at startup.
type Registry struct {
	brand     string
	templates map[string]map[domain.Channel]RenderFunc
}

func NewRegistry(brand string, defs ...Definition) (*Registry, error) {
	brand = strings.TrimSpace(brand)
	if brand == "" {
		return nil, fmt.Errorf("brand name is required")
	}

	templates := make(map[string]map[domain.Channel]RenderFunc, len(defs))
	for _, def := range defs {
		name := strings.TrimSpace(def.Name)
		if name == "" {
			return nil, fmt.Errorf("template name is required")
		}
		if _, exists := templates[name]; exists {
			return nil, fmt.Errorf("duplicate template %q", name)
		}
		if len(def.Channels) == 0 {
			return nil, fmt.Errorf("template %q has no channels", name)
		}

		channels := make(map[domain.Channel]RenderFunc, len(def.Channels))
		for channel, render := range def.Channels {
			if !channel.IsValid() {
				return nil, fmt.Errorf("template %q: invalid channel %q", name, channel)
			}
			if render == nil {
				return nil, fmt.Errorf("template %q: nil renderer for %s", name, channel)
			}
			channels[channel] = render
		}
		templates[name] = channels
	}

	return &Registry{brand: brand, templates: templates}, nil
}

// MustNewRegistry is NewRegistry for static catalogs.
func MustNewRegistry(brand string, defs ...Definition) *Registry {
	r, err := NewRegistry(brand, defs...)
	if err != nil {
		panic(err)
	}
	return r
}

// Resolve renders the template registered for (name, channel). When none is
// registered and params carry a raw message, the generic formatter is used.
func (r *Registry) Resolve(name string, channel domain.Channel, params Params) (domain.RenderedMessage, error) {
	if !channel.IsValid() {
		return domain.RenderedMessage{}, fmt.Errorf("%w: invalid channel %q", domain.ErrValidation, channel)
	}

	values := r.values(params)
	name = strings.TrimSpace(name)

	channels, known := r.templates[name]
	if render, ok := channels[channel]; ok {
		return render(values), nil
	}

	if values.Has(MessageParam) {
		return r.fallback(channel, values), nil
	}

	if known {
		return domain.RenderedMessage{}, fmt.Errorf("%w: %w: template %q has no %s rendering",
			domain.ErrMissingTemplate, domain.ErrUnsupportedChannel, name, channel)
	}
	return domain.RenderedMessage{}, fmt.Errorf("%w: %q", domain.ErrMissingTemplate, name)
}

// Names returns registered template names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Channels returns the channels a template supports, in declaration order
// of domain.Channels.
func (r *Registry) Channels(name string) []domain.Channel {
	channels, ok := r.templates[strings.TrimSpace(name)]
	if !ok {
		return nil
	}
	out := make([]domain.Channel, 0, len(channels))
	for _, channel := range domain.Channels {
		if _, ok := channels[channel]; ok {
			out = append(out, channel)
		}
	}
	return out
}

func (r *Registry) values(params Params) Values {
	return Values{
		params: params,
		defaults: map[string]string{
			"brand":    r.brand,
			"userName": DefaultUserName,
		},
	}
}
