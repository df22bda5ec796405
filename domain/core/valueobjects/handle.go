package valueobjects

import "fmt"

// Handle is one of the four compass connection points on a node
type Handle string

const (
	HandleTop    Handle = "top"
	HandleRight  Handle = "right"
	HandleBottom Handle = "bottom"
	HandleLeft   Handle = "left"
)

// ParseHandle validates a handle name
func ParseHandle(s string) (Handle, error) {
	h := Handle(s)
	if !h.IsValid() {
		return "", fmt.Errorf("invalid handle %q: must be one of top, right, bottom, left", s)
	}
	return h, nil
}

// IsValid reports whether h is one of the four compass positions
func (h Handle) IsValid() bool {
	switch h {
	case HandleTop, HandleRight, HandleBottom, HandleLeft:
		return true
	}
	return false
}

// Opposite returns the facing handle, e.g. the target handle for an edge
// leaving through h.
func (h Handle) Opposite() Handle {
	switch h {
	case HandleTop:
		return HandleBottom
	case HandleBottom:
		return HandleTop
	case HandleLeft:
		return HandleRight
	case HandleRight:
		return HandleLeft
	}
	return h
}

func (h Handle) String() string {
	return string(h)
}
