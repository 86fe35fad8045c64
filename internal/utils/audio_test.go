package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeAudioBase64(t *testing.T) {
	b, err := DecodeAudioBase64("aGVsbG8=")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), b)

	b, err = DecodeAudioBase64(" data:audio/flac;base64,aGVsbG8= ")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), b)

	_, err = DecodeAudioBase64("not base64!")
	assert.Error(t, err)
}
