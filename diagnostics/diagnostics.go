// Package diagnostics starts runtime inspection tools when the binary is built with the gops tag.
package diagnostics
