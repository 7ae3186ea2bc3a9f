package testing

import (
	"bytes"
	"encoding/json"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

// JSONMarshalToReader marshals a payload to be used as a request body
func JSONMarshalToReader(t *testing.T, v interface{}) (io.Reader, bool) {
	payload, err := json.Marshal(v)
	if !assert.NoError(t, err) {
		return nil, false
	}
	return bytes.NewReader(payload), true
}

// JSONUnmarshalBuffer unmarshal provided buffer or panic
func JSONUnmarshalBuffer(buffer *bytes.Buffer, v interface{}) {
	if err := json.Unmarshal(buffer.Bytes(), v); err != nil {
		panic(err)
	}
}

// JSONUnmarshalReader unmarshal provided reader
// returns true if succeeded
func JSONUnmarshalReader(t *testing.T, reader io.Reader, v interface{}) bool {
	if !assert.NotNil(t, reader) {
		return false
	}
	buffer, err := io.ReadAll(reader)
	if !assert.NoError(t, err) {
		return false
	}
	return assert.NoError(t, json.Unmarshal(buffer, v))
}
