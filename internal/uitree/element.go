package uitree

import "context"

// Element is one node of an externally owned accessibility tree. The
// producing application is inconsistent about which attribute carries a
// field's text across its own versions, so every free-text attribute is a
// candidate during flattening.
type Element struct {
	Role        string    `json:"role"`
	Value       string    `json:"value,omitempty"`
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	Help        string    `json:"help,omitempty"`
	Children    []Element `json:"children,omitempty"`
}

// Window is one top-level window of the watched process.
type Window struct {
	Title string  `json:"title"`
	Root  Element `json:"root"`
}

// AppMatch identifies the watched process: the bundle identifier is the
// stable key, the display name is the fallback for builds that don't
// register one.
type AppMatch struct {
	BundleID    string
	DisplayName string
}

// WindowProvider exposes the OS accessibility surface. Implementations
// return the current window set of the matched process; an empty slice
// means the process is not running or owns no windows right now.
type WindowProvider interface {
	Windows(ctx context.Context, app AppMatch) ([]Window, error)
}
