package selection

import (
	"fmt"
	"unicode/utf16"

	"speaking-service/internal/models"
)

// SelectQuestion deterministically picks one question for a student taking a
// test. The same (testID, studentID, question order) always yields the same
// question, across processes and devices, with no server-side assignment
// state: the selection is driven by a PRNG seeded from the student and test
// identifiers rather than by ambient randomness.
func SelectQuestion(questions []models.Question, testID, studentID string) (models.Question, error) {
	if len(questions) == 0 {
		return models.Question{}, fmt.Errorf("no questions to select from for test %s", testID)
	}
	if len(questions) == 1 {
		return questions[0], nil
	}

	seed := hashSeed(studentID + ":speaking:" + testID)
	rng := mulberry32(seed)
	index := int(rng() * float64(len(questions)))
	return questions[index], nil
}

// hashSeed reduces a key to a 32-bit seed with the classic
// acc = acc*31 + code string hash, applied per UTF-16 code unit so the result
// matches what JavaScript charCodeAt-based clients compute for the same key.
func hashSeed(key string) uint32 {
	var acc uint32
	for _, code := range utf16.Encode([]rune(key)) {
		acc = acc*31 + uint32(code)
	}
	return acc
}

// mulberry32 returns a generator of floats in [0, 1) from a 32-bit seed. All
// arithmetic wraps at 32 bits, mirroring Math.imul semantics, so the stream is
// identical to the reference JavaScript implementation.
func mulberry32(seed uint32) func() float64 {
	state := seed
	return func() float64 {
		state += 0x6D2B79F5
		t := state
		t = (t ^ (t >> 15)) * (t | 1)
		t ^= t + (t^(t>>7))*(t|61)
		return float64(t^(t>>14)) / 4294967296.0
	}
}
