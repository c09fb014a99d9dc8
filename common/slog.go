package common

import "log/slog"

// SlogResetLevel sets the default slog level and returns a function that
// restores the previous level. It pairs well with defer:
//
//	func TestDecide(t *testing.T) {
//		defer common.SlogResetLevel(slog.LevelError)()
//	}
func SlogResetLevel(level slog.Level) (reset func()) {
	oldLevel := slog.SetLogLoggerLevel(level)
	return func() {
		slog.SetLogLoggerLevel(oldLevel)
	}
}
