package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubstituteVariables(t *testing.T) {
	out := SubstituteVariables("Hi {{name}}, your code is {{ code }}", map[string]string{
		"name": "Sara",
		"code": "1234",
	})
	assert.Equal(t, "Hi Sara, your code is 1234", out)

	// unknown placeholders stay in place
	out = SubstituteVariables("Hi {{name}}", nil)
	assert.Equal(t, "Hi {{name}}", out)
}

func TestMissingVariables(t *testing.T) {
	missing := MissingVariables("{{b}} {{a}} {{a}} {{c}}", map[string]string{"c": "x"})
	assert.Equal(t, []string{"a", "b"}, missing)

	assert.Empty(t, MissingVariables("no placeholders", nil))
}

func TestProcessAppliesStepsInOrder(t *testing.T) {
	p := NewMessageProcessor()

	result := p.Process("Hóla {{name}}! Visit https://example.com/offers now \U0001F600", ProcessOptions{
		Variables:        map[string]string{"name": "José"},
		NormalizeAccents: true,
		RemoveEmojis:     true,
		ShortenURLs:      true,
		Prefix:           "[ACME]",
		UnsubscribeCode:  "STOP",
	})

	assert.Equal(t, []string{"variables", "normalize_accents", "remove_emojis", "shorten_urls", "prefix", "unsubscribe"}, result.AppliedSteps)
	assert.True(t, strings.HasPrefix(result.Content, "[ACME] Hola Jose!"))
	assert.Contains(t, result.Content, "https://sl.ink/")
	assert.NotContains(t, result.Content, "example.com")
	assert.NotContains(t, result.Content, "\U0001F600")
	assert.True(t, strings.HasSuffix(result.Content, "Reply STOP to unsubscribe"))
}

func TestProcessZeroOptionsIsIdentity(t *testing.T) {
	p := NewMessageProcessor()
	result := p.Process("unchanged content", ProcessOptions{})
	assert.Equal(t, "unchanged content", result.Content)
	assert.Empty(t, result.AppliedSteps)
}

func TestRemoveSpecialChars(t *testing.T) {
	p := NewMessageProcessor()
	result := p.Process("price: $100 & #deal <ok>", ProcessOptions{RemoveSpecialChars: true})
	assert.Equal(t, "price: 100  deal ok", result.Content)
}

func TestShortenURLsIsDeterministic(t *testing.T) {
	p := NewMessageProcessor()
	first := p.Process("go to https://example.com/a", ProcessOptions{ShortenURLs: true})
	second := p.Process("go to https://example.com/a", ProcessOptions{ShortenURLs: true})
	assert.Equal(t, first.Content, second.Content)

	other := p.Process("go to https://example.com/b", ProcessOptions{ShortenURLs: true})
	assert.NotEqual(t, first.Content, other.Content)
}

func TestTemplates(t *testing.T) {
	p := NewMessageProcessor()

	tpl, err := p.RegisterTemplate("welcome", "Hello {{name}}, welcome to {{service}}")
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "service"}, tpl.RequiredVars)

	t.Run("renders with all variables", func(t *testing.T) {
		out, err := p.RenderTemplate("welcome", map[string]string{"name": "Ali", "service": "Acme"})
		require.NoError(t, err)
		assert.Equal(t, "Hello Ali, welcome to Acme", out)
	})

	t.Run("errors on missing variables", func(t *testing.T) {
		_, err := p.RenderTemplate("welcome", map[string]string{"name": "Ali"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "service")
	})

	t.Run("errors on unknown template", func(t *testing.T) {
		_, err := p.RenderTemplate("nope", nil)
		assert.Error(t, err)
	})

	t.Run("rejects empty definitions", func(t *testing.T) {
		_, err := p.RegisterTemplate("", "body")
		assert.Error(t, err)
		_, err = p.RegisterTemplate("name", "  ")
		assert.Error(t, err)
	})

	t.Run("lists templates sorted", func(t *testing.T) {
		_, err := p.RegisterTemplate("alert", "Alert: {{reason}}")
		require.NoError(t, err)
		names := make([]string, 0)
		for _, tpl := range p.ListTemplates() {
			names = append(names, tpl.Name)
		}
		assert.Equal(t, []string{"alert", "welcome"}, names)
	})
}
