package version

import (
	"bytes"
	"os"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	s := String()
	assert.Contains(t, s, "Gostream v"+Version)
	assert.Contains(t, s, runtime.GOOS)

	var buf bytes.Buffer
	ShowVersion(&buf)
	assert.Equal(t, s+"\n", buf.String())
}

func TestHasVersionArg(t *testing.T) {
	saved := os.Args
	defer func() { os.Args = saved }()

	for arg, want := range map[string]bool{"--version": true, "-v": true, "resolve": false} {
		os.Args = []string{"gostream", arg}
		assert.Equal(t, want, HasVersionArg(), arg)
	}

	os.Args = []string{"gostream"}
	assert.False(t, HasVersionArg())
}
