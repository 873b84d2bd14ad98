package chat

import (
	"fmt"
	"strconv"
	"strings"
)

// Action is the decoded payload of an inline button: a name followed by
// numeric arguments, encoded as "name:1:2".
type Action struct {
	Name string
	Args []int64
}

// NewAction builds an action.
func NewAction(name string, args ...int64) Action {
	return Action{Name: name, Args: args}
}

// String encodes the action for use as button data.
func (a Action) String() string {
	if len(a.Args) == 0 {
		return a.Name
	}
	var b strings.Builder
	b.WriteString(a.Name)
	for _, arg := range a.Args {
		b.WriteByte(':')
		b.WriteString(strconv.FormatInt(arg, 10))
	}
	return b.String()
}

// Arg returns argument i, or zero when absent.
func (a Action) Arg(i int) int64 {
	if i < 0 || i >= len(a.Args) {
		return 0
	}
	return a.Args[i]
}

// ParseAction decodes button data produced by Action.String.
func ParseAction(data string) (Action, error) {
	parts := strings.Split(data, ":")
	if parts[0] == "" {
		return Action{}, fmt.Errorf("empty action")
	}
	a := Action{Name: parts[0]}
	for _, p := range parts[1:] {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return Action{}, fmt.Errorf("parse action %q: %w", data, err)
		}
		a.Args = append(a.Args, n)
	}
	return a, nil
}

// Button returns an inline button that triggers a.
func (a Action) Button(text string) Button {
	return Button{Text: text, Data: a.String()}
}
