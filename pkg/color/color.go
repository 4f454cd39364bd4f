// Package color formats CLI output. It defers terminal detection and
// NO_COLOR handling to fatih/color.
package color

import (
	"hash/fnv"
	"os"

	"github.com/fatih/color"
)

var (
	success = color.New(color.FgGreen)
	warn    = color.New(color.FgYellow)
	failure = color.New(color.FgRed, color.Bold)
	muted   = color.New(color.Faint)
	bold    = color.New(color.Bold)
)

// idColors is the palette IDs are hashed into.
var idColors = []*color.Color{
	color.New(color.FgHiRed),
	color.New(color.FgHiGreen),
	color.New(color.FgHiYellow),
	color.New(color.FgHiBlue),
	color.New(color.FgHiMagenta),
	color.New(color.FgHiCyan),
	color.New(color.FgRed),
	color.New(color.FgGreen),
	color.New(color.FgYellow),
	color.New(color.FgBlue),
	color.New(color.FgMagenta),
	color.New(color.FgCyan),
}

func init() {
	if os.Getenv("FORCE_COLOR") != "" {
		color.NoColor = false
	}
}

// SetEnabled forces color on or off.
func SetEnabled(enabled bool) {
	color.NoColor = !enabled
}

func Enabled() bool {
	return !color.NoColor
}

func Success(text string) string { return success.Sprint(text) }
func Warn(text string) string    { return warn.Sprint(text) }
func Error(text string) string   { return failure.Sprint(text) }
func Muted(text string) string   { return muted.Sprint(text) }
func Bold(text string) string    { return bold.Sprint(text) }

// ID colors id with a palette entry chosen by its hash, so the same id is
// always printed in the same color.
func ID(id string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return idColors[h.Sum32()%uint32(len(idColors))].Sprint(id)
}
