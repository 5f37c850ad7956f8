package audits

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSource(t *testing.T) {
	code := []byte("pragma solidity ^0.8.20;\ncontract Example {}\n")

	src, err := LoadSource("token.sol", code, 1024)
	require.NoError(t, err)
	assert.Equal(t, "token.sol", src.Name)
	assert.Equal(t, string(code), src.Content)
	assert.Equal(t, int64(len(code)), src.Size)
	assert.Len(t, src.Hash, 12)
}

func TestLoadSourceDefaultName(t *testing.T) {
	src, err := LoadSource("", []byte("contract A {}"), 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultName, src.Name)
}

func TestLoadSourceStripsDirectories(t *testing.T) {
	src, err := LoadSource("uploads/vault.sol", []byte("contract Vault {}"), 0)
	require.NoError(t, err)
	assert.Equal(t, "vault.sol", src.Name)
}

func TestLoadSourceEmpty(t *testing.T) {
	_, err := LoadSource("a.sol", nil, 1024)
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = LoadSource("a.sol", []byte("   \n\t "), 1024)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestLoadSourceUnsupportedExtension(t *testing.T) {
	_, err := LoadSource("contract.rs", []byte("fn main() {}"), 1024)
	assert.ErrorIs(t, err, ErrUnsupportedFile)
}

func TestLoadSourceTooLarge(t *testing.T) {
	big := []byte(strings.Repeat("x", 100))
	_, err := LoadSource("big.sol", big, 99)
	assert.ErrorIs(t, err, ErrPayloadTooLarge)

	// bound disabled
	_, err = LoadSource("big.sol", big, 0)
	assert.NoError(t, err)
}

func TestCodeHashStable(t *testing.T) {
	a := CodeHash("contract A {}")
	b := CodeHash("contract A {}")
	c := CodeHash("contract B {}")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
