/*
Package nef provides NEF (NEO Executable Format) contract containers.

Encoding is done by neo-go's smartcontract/nef, this package adds limits of
the execution engine on top of it: the total file size is bounded by the
maximum VM item size, the number of method tokens is limited, and decoding
failures are reported with sentinel errors.
*/
package nef

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/nspcc-dev/neo-go/pkg/crypto/hash"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/nef"
)

const (
	// Magic is a magic File header constant.
	Magic = nef.Magic
	// MaxSourceURLLength is the maximum allowed source URL length.
	MaxSourceURLLength = nef.MaxSourceURLLength
	// MaxTokens is the maximum number of method tokens.
	MaxTokens = 128
	// MaxFileSize is the maximum allowed NEF file size, it equals to the
	// maximum size of the VM item.
	MaxFileSize = 1024 * 1024

	compiler     = "neoexec"
	checksumSize = 4
)

// Errors returned on NEF decoding.
var (
	ErrInvalidMagic    = errors.New("invalid magic")
	ErrInvalidChecksum = errors.New("checksum mismatch")
	ErrTooLarge        = errors.New("NEF is too large")
	ErrTooManyTokens   = errors.New("too many method tokens")
	ErrInvalidFormat   = errors.New("invalid NEF")
)

type (
	// File is a compiled contract container.
	File = nef.File
	// Header is a File header.
	Header = nef.Header
	// MethodToken describes a method of another contract called by CALLT.
	MethodToken = nef.MethodToken
)

// NewFile returns a new file with the script specified and the checksum set.
func NewFile(script []byte) *File {
	f := &File{
		Header: Header{
			Magic:    Magic,
			Compiler: compiler,
		},
		Tokens: []MethodToken{},
		Script: script,
	}
	f.Checksum = f.CalculateChecksum()
	return f
}

// FileFromBytes decodes the file and verifies its checksum.
func FileFromBytes(data []byte) (File, error) {
	if len(data) > MaxFileSize {
		return File{}, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(data))
	}
	if len(data) >= 4 && binary.LittleEndian.Uint32(data) != Magic {
		return File{}, ErrInvalidMagic
	}
	if n := len(data) - checksumSize; n > 0 {
		sum := binary.LittleEndian.Uint32(data[n:])
		if sum != binary.LittleEndian.Uint32(hash.Checksum(data[:n])) {
			return File{}, ErrInvalidChecksum
		}
	}
	f, err := nef.FileFromBytes(data)
	if err != nil {
		return File{}, fmt.Errorf("%w: %w", ErrInvalidFormat, err)
	}
	if len(f.Tokens) > MaxTokens {
		return File{}, fmt.Errorf("%w: %d", ErrTooManyTokens, len(f.Tokens))
	}
	return f, nil
}
