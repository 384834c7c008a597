package jsonl

import (
	"context"
	"strings"
	"testing"

	"github.com/hejijunhao/mailsort/internal/model"
	"github.com/hejijunhao/mailsort/internal/source"
)

func TestRegistered(t *testing.T) {
	if _, err := source.Get("jsonl"); err != nil {
		t.Fatalf("jsonl format not registered: %v", err)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    model.Email
		wantErr bool
	}{
		{"string id", `{"id":"abc","email":"Invoice attached"}`, model.Email{ID: "abc", Text: "Invoice attached"}, false},
		{"numeric id", `{"id":42,"email":"hello"}`, model.Email{ID: "42", Text: "hello"}, false},
		{"no id", `{"email":"hello"}`, model.Email{Text: "hello"}, false},
		{"null id", `{"id":null,"email":"hello"}`, model.Email{Text: "hello"}, false},
		{"empty email kept", `{"id":"e","email":""}`, model.Email{ID: "e"}, false},
		{"missing email", `{"id":"x"}`, model.Email{}, true},
		{"null email", `{"id":"x","email":null}`, model.Email{}, true},
		{"numeric email", `{"id":"n","email":12345}`, model.Email{ID: "n", Text: "12345"}, false},
		{"boolean email", `{"email":true}`, model.Email{Text: "true"}, false},
		{"array email", `{"email":["Budget","Review"]}`, model.Email{}, true},
		{"object id", `{"id":{"a":1},"email":"x"}`, model.Email{}, true},
		{"not json", `Invoice attached`, model.Email{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parse(tt.line, 1)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parse() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestStreamSkipsMalformed(t *testing.T) {
	in := strings.Join([]string{
		`{"id":"a","email":"Quarterly budget review"}`,
		`{broken`,
		`{"email":"Team lunch on Friday"}`,
	}, "\n")

	src := New("mail.jsonl")
	var got []model.Email
	for e := range src.Stream(context.Background(), strings.NewReader(in)) {
		got = append(got, e)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 emails, got %d", len(got))
	}
	if got[0].ID != "a" || got[1].ID != "3" {
		t.Errorf("ids = %q, %q; want a, 3", got[0].ID, got[1].ID)
	}
	if src.Skipped() != 1 {
		t.Errorf("Skipped() = %d, want 1", src.Skipped())
	}
}
