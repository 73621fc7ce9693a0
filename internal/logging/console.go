package logging

import (
	"os"

	"github.com/rs/zerolog"
)

// NewConsole builds the leveled, structured console logger used for
// operator-facing output. It renders human-readable text on a TTY and
// newline-delimited JSON otherwise (CI, log aggregation).
func NewConsole(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}

	var writer interface{ Write([]byte) (int, error) } = os.Stderr
	if isTerminal(os.Stderr) {
		writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	}

	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
