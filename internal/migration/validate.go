package migration

import "fmt"

// Level classifies a validation message
type Level int

const (
	// Warning does not block a run
	Warning Level = iota
	// Error blocks a run
	Error
)

func (l Level) String() string {
	if l == Error {
		return "error"
	}
	return "warning"
}

// Message is one validation finding
type Message struct {
	Level Level
	Text  string
}

// Validate walks the registry after a load and returns findings in a
// stable order. requested names must exist; reversible pipelines must be
// total.
func Validate(cfg *Config, requested []string) []Message {
	var messages []Message

	if cfg.Migrations.Len() == 0 {
		messages = append(messages, Message{
			Level: Error,
			Text:  fmt.Sprintf("%s does not define any migration", cfg.RootPath),
		})
		return messages
	}

	for _, name := range requested {
		if _, err := cfg.Migrations.Get(name); err != nil {
			messages = append(messages, Message{Level: Error, Text: err.Error()})
		}
	}

	for _, m := range cfg.Migrations.All() {
		if err := m.CheckReversible(); err != nil {
			messages = append(messages, Message{
				Level: Error,
				Text:  fmt.Sprintf("migration '%s': %v", m.Name(), err),
			})
		}
	}

	return messages
}

// HasErrors reports whether any message is an error
func HasErrors(messages []Message) bool {
	for _, m := range messages {
		if m.Level == Error {
			return true
		}
	}
	return false
}
