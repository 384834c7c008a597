// Package jsonl reads newline-delimited JSON records of the form
// {"id": "...", "email": "..."}. The id is optional. A number or boolean
// email is classified as its JSON text.
package jsonl

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/hejijunhao/mailsort/internal/model"
	"github.com/hejijunhao/mailsort/internal/source"
)

func init() {
	source.Register("jsonl", New)
}

type record struct {
	ID    json.RawMessage `json:"id"`
	Email json.RawMessage `json:"email"`
}

// New returns a JSON Lines source.
func New(name string) source.Source {
	return source.NewLineSource(name, parse)
}

func parse(line string, _ int) (model.Email, error) {
	var rec record
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		return model.Email{}, fmt.Errorf("jsonl: %w", err)
	}
	text, err := parseEmail(rec.Email)
	if err != nil {
		return model.Email{}, err
	}
	id, err := parseID(rec.ID)
	if err != nil {
		return model.Email{}, err
	}
	return model.Email{ID: id, Text: text}, nil
}

func parseEmail(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", errors.New(`jsonl: missing "email" field`)
	}
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return "", fmt.Errorf("jsonl: %w", err)
	}
	switch t := v.(type) {
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	case bool:
		return strconv.FormatBool(t), nil
	default:
		return "", fmt.Errorf("jsonl: email must be a string, number or boolean, got %s", raw)
	}
}

// parseID accepts string or numeric ids.
func parseID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}
	return "", fmt.Errorf("jsonl: id must be a string or number, got %s", raw)
}
