package version

import (
	"fmt"
	"io"
	"os"
	"runtime"
)

// Version is overridden at build time with -ldflags "-X .../version.Version=..."
var Version = "0.1.0"

func HasVersionArg() bool {
	if len(os.Args) > 1 {
		arg := os.Args[1]
		return arg == "--version" || arg == "-version" || arg == "-v" || arg == "--v"
	}
	return false
}

// String returns the version line printed by the CLI
func String() string {
	return fmt.Sprintf("Gostream v%s (%s %s/%s)", Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

func ShowVersion(w io.Writer) {
	_, _ = fmt.Fprintln(w, String())
}
