package utils

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
)

// IsTTY returns true if program is running with TTY
func IsTTY() bool {
	return isatty.IsTerminal(os.Stdout.Fd())
}

// ToJSON marshals the value and panics on failure (use only for values known to be serializable)
func ToJSON[T any](val T) []byte {
	jsonStr, err := json.Marshal(&val)
	if err != nil {
		panic(fmt.Sprintf("Failed to build JSON for %v: %v", val, err))
	}
	return jsonStr
}
