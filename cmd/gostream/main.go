package main

import (
	"fmt"
	"os"

	"github.com/alvarorichard/Gostream/internal/util"
	"github.com/alvarorichard/Gostream/internal/version"
)

func main() {
	if version.HasVersionArg() {
		version.ShowVersion(os.Stdout)
		return
	}

	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, util.ErrorHandler(err))
		os.Exit(1)
	}
}
