package params

import (
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"
)

const (
	AppName = "fixguard"

	// EnvPrefix prefixes every environment variable read by the config loader,
	// eg. FIXGUARD_MAXSPEEDKNOTS.
	EnvPrefix = "FIXGUARD"

	DefaultConfigName = "config"
	JournalDBName     = "rejected.db"
)

// DatadirRoot is where configuration and the rejection journal live by default.
var DatadirRoot = func() string {
	home, err := homedir.Dir()
	if err != nil {
		return filepath.Join(".", "."+AppName)
	}
	return filepath.Join(home, "."+AppName)
}()

var (
	// CacheLastAcceptedTTL bounds how long the last accepted fix of a source
	// is served after the source goes quiet.
	CacheLastAcceptedTTL = 1 * time.Hour

	// SourceTallyCacheSize bounds the number of sources tallied for status.
	SourceTallyCacheSize = 256

	// DedupeCacheSize is how many recent candidates duplicate suppression remembers.
	DedupeCacheSize = 10_000

	DefaultHeartbeatInterval = 30 * time.Second

	// DefaultFeedBuffer sizes subscriber channels on the event feeds.
	// Feeds block senders on slow subscribers, and senders hold the engine.
	DefaultFeedBuffer = 1024
)

// DefaultGZipCompressionLevel is used for .gz output files.
const DefaultGZipCompressionLevel = 6
