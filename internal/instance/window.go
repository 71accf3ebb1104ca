package instance

// ChromeLines is the number of viewport lines reserved for borders and the
// prompt.
const ChromeLines = 2

// Window maps a conversation of n lines, a viewport of height lines and a
// scroll offset (lines up from the bottom) to the half-open range of lines to
// draw. It also returns the scroll offset clamped to what the viewport allows.
//
// The clamp runs before the range is computed, so a scroll value left over
// from a taller viewport can never produce an inverted or out-of-bounds range.
func Window(n, height, scroll int) (start, end, clamped int) {
	if n < 0 {
		n = 0
	}
	if scroll < 0 {
		scroll = 0
	}
	if height < ChromeLines {
		height = ChromeLines
	}

	if n+ChromeLines < height {
		return 0, n, 0
	}

	// top is the largest offset that still fills the viewport; once scroll
	// is clamped to it the window below is always well formed.
	top := n + ChromeLines - height
	if scroll > top {
		scroll = top
	}
	return top - scroll, n - scroll, scroll
}
