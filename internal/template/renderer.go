// Package template renders campaign emails with the Liquid template
// language. Parsed templates are cached by content hash, so a campaign of
// many recipients parses each body once.
package template

import (
	"crypto/md5"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/osteele/liquid"

	"github.com/Marvin-MM/Luco-Email-sub000/internal/domain"
)

// MissingVariableError reports required template variables absent from
// the merged render context. It is a permanent failure for the recipient:
// retrying the send cannot make the variable appear.
type MissingVariableError struct {
	Variables []string
}

func (e *MissingVariableError) Error() string {
	return fmt.Sprintf("missing required template variables: %s", strings.Join(e.Variables, ", "))
}

// Renderer renders templates for campaign recipients.
type Renderer struct {
	engine *liquid.Engine
	cache  sync.Map // content hash -> *liquid.Template
	now    func() time.Time
}

// NewRenderer creates a renderer with the email filter set registered.
func NewRenderer() *Renderer {
	r := &Renderer{
		engine: liquid.NewEngine(),
		now:    time.Now,
	}
	r.registerFilters()
	return r
}

func (r *Renderer) registerFilters() {
	// {{ first_name | default: "Friend" }}
	r.engine.RegisterFilter("default", func(value interface{}, defaultVal string) interface{} {
		if value == nil {
			return defaultVal
		}
		s := fmt.Sprintf("%v", value)
		if s == "" || s == "<nil>" {
			return defaultVal
		}
		return value
	})

	// {{ name | capitalize }}
	r.engine.RegisterFilter("capitalize", func(s string) string {
		if len(s) == 0 {
			return s
		}
		return strings.ToUpper(string(s[0])) + strings.ToLower(s[1:])
	})

	// {{ email | email_domain }}
	r.engine.RegisterFilter("email_domain", func(email string) string {
		parts := strings.Split(email, "@")
		if len(parts) == 2 {
			return parts[1]
		}
		return ""
	})
}

// RenderInput carries everything one recipient's render needs.
type RenderInput struct {
	Template  *domain.Template
	Subject   string
	Campaign  map[string]any
	Recipient *domain.CampaignRecipient
}

// Render produces the subject and bodies for one recipient. Recipient
// variables shadow campaign variables; built-ins shadow both.
func (r *Renderer) Render(in RenderInput) (*domain.RenderedEmail, error) {
	ctx := r.buildContext(in)

	if missing := missingRequired(in.Template, ctx); len(missing) > 0 {
		return nil, &MissingVariableError{Variables: missing}
	}

	subject := in.Subject
	if subject == "" {
		subject = in.Template.Subject
	}

	renderedSubject, err := r.renderString(subject, ctx)
	if err != nil {
		return nil, fmt.Errorf("render subject: %w", err)
	}
	htmlOut, err := r.renderString(in.Template.HTMLContent, ctx)
	if err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	textOut, err := r.renderString(in.Template.TextContent, ctx)
	if err != nil {
		return nil, fmt.Errorf("render text: %w", err)
	}

	return &domain.RenderedEmail{
		Subject:     renderedSubject,
		HTMLContent: htmlOut,
		TextContent: textOut,
	}, nil
}

func (r *Renderer) buildContext(in RenderInput) map[string]any {
	ctx := make(map[string]any, len(in.Campaign)+len(in.Recipient.Variables)+4)
	for k, v := range in.Campaign {
		ctx[k] = v
	}
	for k, v := range in.Recipient.Variables {
		ctx[k] = v
	}

	now := r.now()
	ctx["email"] = in.Recipient.Email
	ctx["current_year"] = now.Year()
	ctx["current_date"] = now.Format("January 2, 2006")
	ctx["unsubscribe_url"] = fmt.Sprintf("{{unsubscribe:%s}}", in.Recipient.ID)
	return ctx
}

func (r *Renderer) renderString(src string, ctx map[string]any) (string, error) {
	if src == "" {
		return "", nil
	}
	key := fmt.Sprintf("%x", md5.Sum([]byte(src)))
	if cached, ok := r.cache.Load(key); ok {
		return cached.(*liquid.Template).RenderString(ctx)
	}
	tpl, err := r.engine.ParseString(src)
	if err != nil {
		return "", err
	}
	r.cache.Store(key, tpl)
	return tpl.RenderString(ctx)
}

// missingRequired lists declared-required variables whose context value is
// absent or empty. Built-ins count as present like any other value.
func missingRequired(tpl *domain.Template, ctx map[string]any) []string {
	var missing []string
	for _, v := range tpl.Variables {
		if !v.Required {
			continue
		}
		val, ok := ctx[v.Name]
		if !ok || val == nil || fmt.Sprintf("%v", val) == "" {
			missing = append(missing, v.Name)
		}
	}
	return missing
}
