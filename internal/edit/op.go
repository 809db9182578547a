// Package edit resolves edit instructions into concrete token-span
// operations with surrounding context.
package edit

import "strings"

// Padding is context text adjacent to an edit together with its token
// span. Token indices are -1 when no padding exists.
type Padding struct {
	Text       string `json:"text"`
	StartToken int    `json:"start_token"`
	EndToken   int    `json:"end_token"`
}

// Operation describes one resolved edit: the text being replaced, its
// replacement, the token span to regenerate, and the padding context on
// either side. Pre-padding is text before the edit, post-padding after;
// neither is replaced but both condition generation.
type Operation struct {
	OriginalText string  `json:"original_text"`
	EditedText   string  `json:"edited_text"`
	StartToken   int     `json:"start_token"`
	EndToken     int     `json:"end_token"`
	Confidence   float64 `json:"confidence"`

	Prepadding  Padding `json:"prepadding"`
	Postpadding Padding `json:"postpadding"`
}

// IsInsertion reports whether the operation inserts text without
// replacing anything.
func (o Operation) IsInsertion() bool {
	return strings.TrimSpace(o.OriginalText) == ""
}

// IsDeletion reports whether the operation removes text without a
// replacement, which skips generation entirely.
func (o Operation) IsDeletion() bool {
	return strings.TrimSpace(o.EditedText) == ""
}

func noPadding() Padding {
	return Padding{StartToken: -1, EndToken: -1}
}
