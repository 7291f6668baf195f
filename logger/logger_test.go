package logger

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelsAndWriter(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)
	defer SetLevel("info")

	SetLevel("warn")
	Infof("hidden %d", 1)
	Warnf("shown %d", 2)
	assert.NotContains(t, buf.String(), "hidden 1")
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "shown 2")

	buf.Reset()
	SetLevel("debug")
	Debugf("detail")
	assert.Contains(t, buf.String(), "level=DEBUG")

	buf.Reset()
	SetLevel("WARNING")
	Infof("quiet")
	Errorf("loud")
	assert.NotContains(t, buf.String(), "quiet")
	assert.Contains(t, buf.String(), "loud")

	buf.Reset()
	SetLevel("verbose")
	Debugf("still hidden")
	Infof("back to info")
	assert.NotContains(t, buf.String(), "still hidden")
	assert.Contains(t, buf.String(), "back to info")

	SetLevel("debug")

	buf.Reset()
	Writer{}.Println("recovered:", "boom")
	assert.Contains(t, buf.String(), "level=ERROR")
	assert.Contains(t, buf.String(), "recovered: boom")

	buf.Reset()
	n, err := Writer{}.Write([]byte("GET / 200\n"))
	assert.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Contains(t, buf.String(), "GET / 200")
}
