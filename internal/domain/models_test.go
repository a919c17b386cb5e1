package domain

import (
	"errors"
	"testing"
)

func TestPercentageRoundsHalfUp(t *testing.T) {
	tests := []struct {
		score, total, want int
	}{
		{2, 3, 67},
		{3, 3, 100},
		{1, 8, 13},
		{1, 3, 33},
		{0, 5, 0},
		{1, 0, 0},
	}
	for _, tt := range tests {
		if got := Percentage(tt.score, tt.total); got != tt.want {
			t.Fatalf("Percentage(%d, %d) = %d, want %d", tt.score, tt.total, got, tt.want)
		}
	}
	if Passed(69) || !Passed(70) {
		t.Fatalf("pass threshold must be 70")
	}
}

func TestSlug(t *testing.T) {
	cases := map[string]string{
		"Cyber Security": "cyber-security",
		"  DBMS ":        "dbms",
		"C++":            "c++",
		"Data   Science": "data-science",
	}
	for in, want := range cases {
		if got := Slug(in); got != want {
			t.Fatalf("Slug(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestQuizValidate(t *testing.T) {
	valid := Quiz{
		Topic: "DBMS",
		Questions: []Question{
			{ID: "1", Prompt: "Primary key?", Options: []string{"A", "B", "C", "D"}, Answer: "A"},
		},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid quiz, got %v", err)
	}

	broken := []Quiz{
		{Topic: "", Questions: valid.Questions},
		{Topic: "DBMS"},
		{Topic: "DBMS", Questions: []Question{{ID: "1", Prompt: "", Options: []string{"A", "B"}, Answer: "A"}}},
		{Topic: "DBMS", Questions: []Question{{ID: "1", Prompt: "p", Options: []string{"A", " "}, Answer: "A"}}},
		{Topic: "DBMS", Questions: []Question{{ID: "1", Prompt: "p", Options: []string{"A", "B"}, Answer: "E"}}},
		{Topic: "DBMS", Questions: []Question{{ID: "1", Prompt: "p", Options: []string{"A", "A"}, Answer: "A"}}},
		{Topic: "DBMS", Questions: []Question{
			{ID: "1", Prompt: "p", Options: []string{"A", "B"}, Answer: "A"},
			{ID: "1", Prompt: "q", Options: []string{"A", "B"}, Answer: "B"},
		}},
	}
	for i, quiz := range broken {
		if err := quiz.Validate(); !errors.Is(err, ErrInvalidQuiz) {
			t.Fatalf("case %d: expected ErrInvalidQuiz, got %v", i, err)
		}
	}
}

func TestPublicQuestionHidesAnswer(t *testing.T) {
	q := Question{ID: "q1", Prompt: "2+2", Options: []string{"3", "4"}, Answer: "4"}
	pub := q.Public()
	pub.Options[0] = "mutated"
	if q.Options[0] != "3" {
		t.Fatalf("public view must copy options")
	}
	if !q.IsCorrect("4") || q.IsCorrect("") {
		t.Fatalf("unexpected correctness check")
	}
}

func TestCheckpointKeyString(t *testing.T) {
	if got := (CheckpointKey{Topic: "Cyber Security"}).String(); got != "-/cyber-security" {
		t.Fatalf("unexpected anonymous key %q", got)
	}
	if got := (CheckpointKey{Username: "alice", Topic: "DBMS"}).String(); got != "alice/dbms" {
		t.Fatalf("unexpected key %q", got)
	}
	a := CheckpointKey{Client: "c1", Topic: "DBMS"}
	b := CheckpointKey{Client: "c2", Topic: "DBMS"}
	if a.String() != "~c1/dbms" || a.String() == b.String() || !a.Anonymous() {
		t.Fatalf("anonymous clients must not share a key: %q %q", a, b)
	}
}

func TestUserValidate(t *testing.T) {
	if err := (User{Username: "alice", Email: "alice@example.com"}).Validate(); err != nil {
		t.Fatalf("expected valid user, got %v", err)
	}
	for _, u := range []User{{Email: "a@b"}, {Username: "a b", Email: "a@b"}, {Username: "a", Email: "nope"}, {Username: "~a", Email: "a@b"}, {Username: "a/b", Email: "a@b"}} {
		if err := u.Validate(); !errors.Is(err, ErrInvalidUser) {
			t.Fatalf("expected ErrInvalidUser for %+v, got %v", u, err)
		}
	}
}
