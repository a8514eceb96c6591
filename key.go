package quota

// EventType identifies the kind of action being limited, e.g. "read".
type EventType string

// keySeparator may not appear in an EventType, which keeps StoreKey
// unambiguous whatever the subject name contains.
const keySeparator = ":"

// Key identifies one rate-limited subject/event pair.
type Key struct {
	Name      string
	EventType EventType
}

func NewKey(name string, eventType EventType) Key {
	return Key{Name: name, EventType: eventType}
}

// StoreKey returns "<eventType>:<name>".
func (k Key) StoreKey() string {
	return string(k.EventType) + keySeparator + k.Name
}

func (k Key) String() string {
	return k.StoreKey()
}

func namespacedKey(prefix string, k Key) string {
	if prefix == "" {
		return k.StoreKey()
	}
	return prefix + keySeparator + k.StoreKey()
}
