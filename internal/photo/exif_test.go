package photo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadCaptureInfoWithoutExif(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	info := ReadCaptureInfo(png)
	assert.Nil(t, info.TakenAt)
	assert.Nil(t, info.Camera)

	info = ReadCaptureInfo(nil)
	assert.Nil(t, info.TakenAt)
	assert.Nil(t, info.Camera)
}

func TestJoinCamera(t *testing.T) {
	assert.Equal(t, "Canon EOS 5D", joinCamera([]string{"Canon", "Canon EOS 5D"}))
	assert.Equal(t, "NIKON CORPORATION NIKON D750", joinCamera([]string{"NIKON CORPORATION", "NIKON D750"}))
	assert.Equal(t, "FUJIFILM X-T4", joinCamera([]string{"FUJIFILM", "X-T4"}))
	assert.Equal(t, "X-T4", joinCamera([]string{"X-T4"}))
}
