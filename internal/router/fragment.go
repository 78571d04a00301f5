package router

import (
	"strings"

	"eventcal/internal/datekey"
	"eventcal/internal/state"
)

// Fragment is the shareable form of a view: #<container>/<view>/<date>.
type Fragment struct {
	ContainerID string
	View        state.View
	Key         datekey.Key
}

func (f Fragment) String() string {
	return "#" + f.ContainerID + "/" + string(f.View) + "/" + string(f.Key)
}

// ParseFragment reads an address fragment, with or without the leading
// '#'. It needs exactly three segments, a known view and a valid date.
func ParseFragment(hash string) (Fragment, bool) {
	parts := strings.Split(strings.TrimPrefix(hash, "#"), "/")
	if len(parts) != 3 || parts[0] == "" {
		return Fragment{}, false
	}
	view, err := state.ParseView(parts[1])
	if err != nil {
		return Fragment{}, false
	}
	key, err := datekey.Parse(parts[2])
	if err != nil {
		return Fragment{}, false
	}
	return Fragment{ContainerID: parts[0], View: view, Key: key}, true
}
