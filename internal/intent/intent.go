// Package intent decides which capability a message is meant for.
package intent

import (
	"regexp"
	"strings"
)

type Intent string

const (
	Chat           Intent = "chat"
	Debug          Intent = "debug"
	Docs           Intent = "docs"
	Orchestrate    Intent = "orchestrate"
	CreateWorkflow Intent = "create-workflow"
)

// All lists every intent in classification priority order, Chat last.
func All() []Intent {
	return []Intent{CreateWorkflow, Debug, Docs, Orchestrate, Chat}
}

func (i Intent) Valid() bool {
	switch i {
	case Chat, Debug, Docs, Orchestrate, CreateWorkflow:
		return true
	}
	return false
}

type rule struct {
	intent  Intent
	pattern *regexp.Regexp
}

// Rules are tried in order and the first match wins. Keywords only match
// whole words: "prefix" does not trigger debug and "creates" does not
// trigger workflow creation.
var rules = []rule{
	{CreateWorkflow, keywords("crie", "criar", "create", "new workflow", "criação")},
	{Debug, keywords("debug:", "debug", "erro:", "erro", "corrija", "fix")},
	{Docs, keywords("docs:", "documentação", "como uso", "como usar", "pesquise", "estude")},
	{Orchestrate, keywords("ulw:", "ultrawork", "orquestra", "orchestra")},
}

func keywords(words ...string) *regexp.Regexp {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`(?:^|[^\p{L}\p{N}_])(?:` + strings.Join(quoted, "|") + `)(?:[^\p{L}\p{N}_]|$)`)
}

// Classify maps free text to an intent. It never fails: anything that
// matches no rule, including empty input, is Chat.
func Classify(message string) Intent {
	text := strings.ToLower(strings.TrimSpace(message))
	if text == "" {
		return Chat
	}
	for _, r := range rules {
		if r.pattern.MatchString(text) {
			return r.intent
		}
	}
	return Chat
}
