package source

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
)

// ReadJSONFile reads path and decodes it into a T.
//
// A missing file is KindNotFound, undecodable content (including a zero-byte
// file) is KindMalformed, and any other read error is KindFailed.
func ReadJSONFile[T any](path string) Outcome[T] {
	data, err := os.ReadFile(path)
	if err != nil {
		kind := KindFailed
		if errors.Is(err, fs.ErrNotExist) {
			kind = KindNotFound
		}
		return Fail[T](&Failure{Kind: kind, Source: path, Err: err})
	}
	return DecodeJSON[T](path, data)
}

// DecodeJSON decodes data into a T, tagging decode errors as KindMalformed.
// src is only used to describe the failure.
func DecodeJSON[T any](src string, data []byte) Outcome[T] {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return Fail[T](&Failure{Kind: KindMalformed, Source: src, Err: err})
	}
	return Ok(v)
}
