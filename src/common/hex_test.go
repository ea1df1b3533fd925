package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHexEncoding(t *testing.T) {
	data := []byte{0xde, 0xad, 0xbe, 0xef}

	s := EncodeToString(data)
	assert.Equal(t, "0XDEADBEEF", s)

	res, err := DecodeFromString(s)
	require.NoError(t, err)
	assert.Equal(t, data, res)

	res, err = DecodeFromString("0xdeadbeef")
	require.NoError(t, err)
	assert.Equal(t, data, res)

	assert.Equal(t, "0X", EncodeToString(nil))

	_, err = DecodeFromString("DEADBEEF")
	assert.Error(t, err)

	_, err = DecodeFromString("0XZZ")
	assert.Error(t, err)
}
