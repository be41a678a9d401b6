package hxlive

// SwapMode defines how a reloaded fragment is placed into the component's
// container element.
//
// Each mode corresponds to an HTMX hx-swap value. The default is SwapReplace.
//
// See https://htmx.org/attributes/hx-swap/ for visual examples.
type SwapMode string

const (
	// SwapReplace replaces the container's contents (innerHTML). The
	// container element itself stays, so its id keeps receiving reloads.
	SwapReplace SwapMode = "innerHTML"

	// SwapAppend appends each reload to the end of the container (beforeend).
	// Useful for logs and chat-like lists.
	SwapAppend SwapMode = "beforeend"

	// SwapPrepend inserts each reload at the start of the container
	// (afterbegin).
	SwapPrepend SwapMode = "afterbegin"
)

func (m SwapMode) valid() bool {
	switch m {
	case SwapReplace, SwapAppend, SwapPrepend:
		return true
	}
	return false
}

// attr returns the hx-swap value for the mode.
func (m SwapMode) attr() string {
	if m == "" {
		m = SwapReplace
	}
	return string(m) + " transition:true"
}
