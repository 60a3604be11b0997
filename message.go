package fitlog

// Field is one named value inside a decoded message.
type Field struct {
	Name  string `json:"name"`
	Value Value  `json:"value"`
}

// Message is one decoded FIT data message. Kind is the snake_case global
// message name ("session", "record", ...).
type Message struct {
	Kind   string  `json:"kind"`
	Fields []Field `json:"fields"`
}

// Get returns the first field with the given name.
func (m Message) Get(name string) (Value, bool) {
	for _, f := range m.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Value{}, false
}

// GetAny returns the first of names present on the message. Later names are
// only consulted when earlier fields are absent, not when they fail to coerce.
func (m Message) GetAny(names ...string) (Value, bool) {
	for _, n := range names {
		if v, ok := m.Get(n); ok {
			return v, true
		}
	}
	return Value{}, false
}

// MessageSource decodes raw file bytes into an ordered message stream.
type MessageSource interface {
	Decode(data []byte) ([]Message, error)
}

// MessageSourceFunc adapts a function to MessageSource.
type MessageSourceFunc func(data []byte) ([]Message, error)

func (f MessageSourceFunc) Decode(data []byte) ([]Message, error) { return f(data) }
