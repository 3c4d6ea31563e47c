// Package ingestion defines the request types accepted by the HTTP layer and
// the strongly typed Document every collection is validated into.
package ingestion

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/Adithya-Monish-Kumar-K/inverted-index/pkg/errors"
)

// Document is a single book in a submitted collection. Only Text is indexed.
type Document struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// CreateRequest is the JSON body of POST /api/create. FileName is kept
// untyped so a non-string name is reported as an invalid name rather than
// an undecodable body.
type CreateRequest struct {
	FileName    any             `json:"fileName"`
	FileContent json.RawMessage `json:"fileContent"`
}

// UnmarshalJSON matches keys exactly; "FileName" or "filename" are unknown
// keys and ignored.
func (c *CreateRequest) UnmarshalJSON(data []byte) error {
	fields, err := objectFields(data)
	if err != nil {
		return err
	}
	if raw, ok := fields["fileName"]; ok {
		if err := json.Unmarshal(raw, &c.FileName); err != nil {
			return fmt.Errorf("fileName: %w", err)
		}
	}
	c.FileContent = fields["fileContent"]
	return nil
}

// SearchRequest is the JSON body of POST /api/search. Terms is either a
// comma-space delimited string or a nested JSON array of strings.
type SearchRequest struct {
	Index    json.RawMessage `json:"index"`
	FileName string          `json:"fileName,omitempty"`
	Terms    json.RawMessage `json:"terms,omitempty"`
}

// UnmarshalJSON matches keys exactly, like CreateRequest.
func (s *SearchRequest) UnmarshalJSON(data []byte) error {
	fields, err := objectFields(data)
	if err != nil {
		return err
	}
	if raw, ok := fields["fileName"]; ok {
		if err := json.Unmarshal(raw, &s.FileName); err != nil {
			return fmt.Errorf("fileName: %w", err)
		}
	}
	s.Index = fields["index"]
	s.Terms = fields["terms"]
	return nil
}

// objectFields splits a JSON object into its members. JSON null yields no
// members.
func objectFields(data []byte) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// DecodeBody decodes a request body into v. An empty body leaves v at its
// zero value. A body cut off by http.MaxBytesReader yields a 413 error and
// any other decoding failure wraps ErrInvalidInput.
func DecodeBody(body io.Reader, v any) error {
	err := json.NewDecoder(body).Decode(v)
	var tooLarge *http.MaxBytesError
	switch {
	case err == nil, errors.Is(err, io.EOF):
		return nil
	case errors.As(err, &tooLarge):
		return apperrors.New(apperrors.ErrInvalidInput, http.StatusRequestEntityTooLarge, apperrors.MsgBodyTooLarge)
	default:
		return fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
}
