package graph

import (
	"encoding/base64"
	"fmt"
	"strconv"
)

// encodeCursor renders an answer offset as an opaque cursor.
func encodeCursor(offset int) string {
	return base64.StdEncoding.EncodeToString([]byte(strconv.Itoa(offset)))
}

// decodeCursor returns the offset a cursor points past. An empty cursor
// starts at 0.
func decodeCursor(encoded string) (int, error) {
	if encoded == "" {
		return 0, nil
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return 0, fmt.Errorf("decode cursor: %w", err)
	}
	n, err := strconv.Atoi(string(raw))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("decode cursor: invalid offset %q", raw)
	}
	return n, nil
}
