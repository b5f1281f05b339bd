package service

import (
	"bytes"
	"encoding/json"

	"hustlex/internal/domain"
)

// NormalizeFiles turns the attachment field of a sendMessage payload into
// an ordered list of FileMeta. Clients send it in one of four shapes:
//
//	[{...}, {...}]        structured list
//	{...}                 single object
//	"[{...}]"             JSON-encoded list
//	["[{...}]"]           list whose first element is a JSON-encoded list
//
// Anything that cannot be decoded yields an empty list and malformed=true;
// records without a name are dropped and also flag malformed. The result is
// never nil.
func NormalizeFiles(raw json.RawMessage) (files []domain.FileMeta, malformed bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []domain.FileMeta{}, false
	}

	switch trimmed[0] {
	case '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(trimmed, &elems); err != nil {
			return []domain.FileMeta{}, true
		}
		if len(elems) > 0 {
			if first := bytes.TrimSpace(elems[0]); len(first) > 0 && first[0] == '"' {
				return decodeEncodedList(first)
			}
		}
		return decodeEach(elems)

	case '{':
		return decodeEach([]json.RawMessage{trimmed})

	case '"':
		return decodeEncodedList(trimmed)
	}

	return []domain.FileMeta{}, true
}

// decodeEncodedList handles a JSON string whose content is itself a JSON
// list of file records.
func decodeEncodedList(quoted []byte) ([]domain.FileMeta, bool) {
	var inner string
	if err := json.Unmarshal(quoted, &inner); err != nil {
		return []domain.FileMeta{}, true
	}
	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(inner), &elems); err != nil {
		return []domain.FileMeta{}, true
	}
	return decodeEach(elems)
}

func decodeEach(elems []json.RawMessage) ([]domain.FileMeta, bool) {
	files := make([]domain.FileMeta, 0, len(elems))
	malformed := false
	for _, e := range elems {
		var f domain.FileMeta
		if err := json.Unmarshal(e, &f); err != nil || f.Name == "" {
			malformed = true
			continue
		}
		files = append(files, f)
	}
	return files, malformed
}
