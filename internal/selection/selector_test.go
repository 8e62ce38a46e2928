package selection

import (
	"strconv"
	"testing"

	"speaking-service/internal/models"
)

func makeQuestions(ids ...string) []models.Question {
	questions := make([]models.Question, len(ids))
	for i, id := range ids {
		questions[i] = models.Question{ID: id, Prompt: "prompt " + id}
	}
	return questions
}

func TestHashSeed(t *testing.T) {
	testCases := []struct {
		key      string
		expected uint32
	}{
		{"s42:speaking:t1", 105476958},
		{"s42:speaking:t2", 105476959},
		{"s43:speaking:t1", 4107041247},
		{"s1:speaking:unit-7", 3296286908},
		{"alice:speaking:midterm", 2017596868},
	}

	for _, tc := range testCases {
		t.Run(tc.key, func(t *testing.T) {
			if got := hashSeed(tc.key); got != tc.expected {
				t.Errorf("hashSeed(%q) = %d, want %d", tc.key, got, tc.expected)
			}
		})
	}
}

func TestMulberry32GoldenStream(t *testing.T) {
	// First draw for seed 105476958 ("s42:speaking:t1") must match the
	// reference implementation bit for bit.
	rng := mulberry32(105476958)

	expected := 0.06888707610778511
	if got := rng(); got != expected {
		t.Errorf("first draw = %.17f, want %.17f", got, expected)
	}
}

func TestSelectQuestionGoldenScenario(t *testing.T) {
	questions := makeQuestions("a", "b", "c")

	selected, err := SelectQuestion(questions, "t1", "s42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// seed 105476958, first draw 0.0688... => index 0
	if selected.ID != "a" {
		t.Errorf("expected question a, got %s", selected.ID)
	}
}

func TestSelectQuestionDeterminism(t *testing.T) {
	questions := makeQuestions("q1", "q2", "q3", "q4", "q5", "q6", "q7")

	first, err := SelectQuestion(questions, "midterm", "student-7")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < 50; i++ {
		again, err := SelectQuestion(questions, "midterm", "student-7")
		if err != nil {
			t.Fatalf("unexpected error on call %d: %v", i, err)
		}
		if again.ID != first.ID {
			t.Fatalf("call %d selected %s, first call selected %s", i, again.ID, first.ID)
		}
	}
}

func TestSelectQuestionSingleShortcut(t *testing.T) {
	only := makeQuestions("solo")

	for _, studentID := range []string{"s1", "s2", "anyone"} {
		selected, err := SelectQuestion(only, "t1", studentID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if selected.ID != "solo" {
			t.Errorf("student %s: expected solo, got %s", studentID, selected.ID)
		}
	}
}

func TestSelectQuestionEmptyInput(t *testing.T) {
	if _, err := SelectQuestion(nil, "t1", "s1"); err == nil {
		t.Error("expected error for empty question set")
	}
}

func TestSelectQuestionSeedSensitivity(t *testing.T) {
	questions := makeQuestions("a", "b", "c", "d", "e", "f", "g", "h")

	// Varying the student while holding the test fixed must move the
	// selection for at least one student in a modest sample. This is a
	// statistical property: a hash that collapsed these keys to one seed
	// would pin every student to the same question.
	base, _ := SelectQuestion(questions, "t1", "student-0")
	moved := false
	for i := 1; i < 20; i++ {
		selected, _ := SelectQuestion(questions, "t1", "student-"+strconv.Itoa(i))
		if selected.ID != base.ID {
			moved = true
			break
		}
	}
	if !moved {
		t.Error("selection never changed across 20 distinct students")
	}

	// Same check varying the test.
	base, _ = SelectQuestion(questions, "test-0", "s42")
	moved = false
	for i := 1; i < 20; i++ {
		selected, _ := SelectQuestion(questions, "test-"+strconv.Itoa(i), "s42")
		if selected.ID != base.ID {
			moved = true
			break
		}
	}
	if !moved {
		t.Error("selection never changed across 20 distinct tests")
	}
}

func TestSelectQuestionAdjacentKeysDiffer(t *testing.T) {
	// "s42:speaking:t1" and "s42:speaking:t2" hash to adjacent seeds; the
	// mixing must still spread them to different draws.
	questions := makeQuestions("a", "b", "c", "d", "e")

	t1, _ := SelectQuestion(questions, "t1", "s42")
	t2, _ := SelectQuestion(questions, "t2", "s42")

	// Golden: t1 -> index 0, t2 -> index 4.
	if t1.ID != "a" {
		t.Errorf("t1 selection = %s, want a", t1.ID)
	}
	if t2.ID != "e" {
		t.Errorf("t2 selection = %s, want e", t2.ID)
	}
}
