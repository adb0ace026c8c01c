package monitoring

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetLogger(t *testing.T) {
	orig := Logf
	defer func() { Logf = orig }()

	var got []string
	SetLogger(func(format string, v ...interface{}) {
		got = append(got, fmt.Sprintf(format, v...))
	})
	Logf("pose: solved %d bones", 16)
	assert.Equal(t, []string{"pose: solved 16 bones"}, got)

	SetLogger(nil)
	assert.NotPanics(t, func() { Logf("ignored %v", 1) })
	assert.Len(t, got, 1)
}
