package service

import (
	"fmt"

	nanoid "github.com/jaevor/go-nanoid"
)

// Display ids are the short codes customers quote to support and type into
// the tracking page. Ambiguous characters are excluded.
const displayIDAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

var newDisplayCode = mustGenerator()

func mustGenerator() func() string {
	gen, err := nanoid.CustomASCII(displayIDAlphabet, 8)
	if err != nil {
		panic(fmt.Errorf("display id generator: %w", err))
	}
	return gen
}

func NewDisplayID() string {
	return "IF-" + newDisplayCode()
}
