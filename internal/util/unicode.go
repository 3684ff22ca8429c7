package util

// UTF16Len returns the length of text measured in UTF-16 code units.
//
// Characters outside the BMP (codepoint > 0xFFFF) take 2 UTF-16 code units
// (a surrogate pair); all others take 1. This matches how the chat platform
// (and the JavaScript clients talking to it) count message length.
func UTF16Len(text string) int {
	count := 0
	for _, r := range text {
		if r > 0xFFFF {
			count += 2
		} else {
			count++
		}
	}
	return count
}
