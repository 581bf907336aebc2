package meeting

import (
	"context"
	"strings"
	"testing"
)

func TestRandomIssuer_Issue(t *testing.T) {
	iss, err := NewRandomIssuer("https://meet.example/j/{id}?src=mindcare", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res, err := iss.Issue(context.Background(), "booking-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if res.ID == "" {
		t.Fatal("expected meeting id")
	}
	if res.JoinURL != "https://meet.example/j/"+res.ID+"?src=mindcare" {
		t.Errorf("unexpected join url %q", res.JoinURL)
	}
	if len(res.Password) != 10 {
		t.Errorf("expected 10-char password, got %q", res.Password)
	}
	for _, ch := range res.Password {
		if !strings.ContainsRune(PasswordAlphabet, ch) {
			t.Errorf("password contains %q outside the alphabet", ch)
		}
	}
}

func TestRandomIssuer_Unique(t *testing.T) {
	iss, _ := NewRandomIssuer(DefaultURLTemplate, DefaultPasswordLength)
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		res, err := iss.Issue(context.Background(), "b")
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}
		if seen[res.ID] {
			t.Fatalf("duplicate meeting id %s", res.ID)
		}
		seen[res.ID] = true
	}
}

func TestNewRandomIssuer_Invalid(t *testing.T) {
	if _, err := NewRandomIssuer("https://meet.example/j/", 8); err == nil {
		t.Error("expected error for template without {id}")
	}
	if _, err := NewRandomIssuer(DefaultURLTemplate, 0); err == nil {
		t.Error("expected error for zero password length")
	}
}

func TestPasswordAlphabet_NoAmbiguousCharacters(t *testing.T) {
	for _, ch := range "0O1lI" {
		if strings.ContainsRune(PasswordAlphabet, ch) {
			t.Errorf("alphabet contains ambiguous %q", ch)
		}
	}
}
