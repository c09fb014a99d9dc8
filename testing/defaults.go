package testing

import (
	"os"
	"path/filepath"
)

const DefaultTestDirRoot = "fixguard-test"

func DefaultTestDir() string {
	return filepath.Join(os.TempDir(), DefaultTestDirRoot)
}
