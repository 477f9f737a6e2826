package session

import "io"

// Item is one unit of publish work. Blank Key/Token fall back to the
// session-level defaults.
type Item struct {
	Key   string
	Token string
	Psub  bool
	Data  string
}

// Source yields successive publish items. It is consumed once, in order,
// and returns io.EOF when exhausted. A Source may be infinite.
//
// The session deadline can only interrupt transport operations, not a
// Source call. A Source that blocks indefinitely (an idle interactive
// stdin, for example) delays timeout delivery until it yields.
type Source func() (Item, error)

// Items adapts a fixed slice of items.
func Items(items []Item) Source {
	i := 0
	return func() (Item, error) {
		if i >= len(items) {
			return Item{}, io.EOF
		}
		item := items[i]
		i++
		return item, nil
	}
}

// Values adapts a fixed slice of payloads sharing the session defaults.
func Values(values []string) Source {
	i := 0
	return func() (Item, error) {
		if i >= len(values) {
			return Item{}, io.EOF
		}
		item := Item{Data: values[i]}
		i++
		return item, nil
	}
}
