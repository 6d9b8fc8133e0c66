// Package identity parses and validates 13-digit national identity numbers.
// The number encodes a birth date (YYMMDD), a four-digit gender block, and a
// trailing Luhn-style check digit.
package identity

import (
	"fmt"
	"time"
)

// Sex is the binary sex encoded in the ID's gender block. The questionnaire
// carries a separate, self-declared gender field (male/female/other); the
// ID-derived value is only a default for that field, never an overwrite.
type Sex string

const (
	SexMale   Sex = "male"
	SexFemale Sex = "female"
)

// Identity is the result of parsing a valid national ID number.
type Identity struct {
	Number    string    `json:"number"`
	Valid     bool      `json:"valid"`
	BirthDate time.Time `json:"birth_date"`
	Age       int       `json:"age"`
	Sex       Sex       `json:"sex"`
}

// InvalidIdentityError reports why an ID number was rejected.
type InvalidIdentityError struct {
	Number string
	Reason string
}

func (e *InvalidIdentityError) Error() string {
	return fmt.Sprintf("invalid identity number: %s", e.Reason)
}

func invalid(number, format string, args ...interface{}) error {
	return &InvalidIdentityError{Number: number, Reason: fmt.Sprintf(format, args...)}
}

// Parse validates an ID number and extracts birth date, age and sex.
// now supplies the reference time for the century rule and age computation.
//
// The century rule interprets YY as 2000+YY when YY <= now's two-digit year,
// otherwise 1900+YY. This is a known limitation carried over for
// compatibility: the scheme cannot distinguish people more than a century
// apart and no checksum-based disambiguation is attempted.
func Parse(number string, now time.Time) (Identity, error) {
	if len(number) != 13 {
		return Identity{}, invalid(number, "expected 13 digits, got %d", len(number))
	}

	digits := make([]int, 13)
	for i, r := range number {
		if r < '0' || r > '9' {
			return Identity{}, invalid(number, "non-numeric character at position %d", i)
		}
		digits[i] = int(r - '0')
	}

	if !checksumOK(digits) {
		return Identity{}, invalid(number, "checksum mismatch")
	}

	yy := digits[0]*10 + digits[1]
	month := digits[2]*10 + digits[3]
	day := digits[4]*10 + digits[5]

	year := 1900 + yy
	if yy <= now.Year()%100 {
		year = 2000 + yy
	}

	birth := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if birth.Year() != year || int(birth.Month()) != month || birth.Day() != day {
		return Identity{}, invalid(number, "invalid birth date %02d-%02d-%02d", yy, month, day)
	}

	genderBlock := digits[6]*1000 + digits[7]*100 + digits[8]*10 + digits[9]
	sex := SexFemale
	if genderBlock >= 5000 {
		sex = SexMale
	}

	return Identity{
		Number:    number,
		Valid:     true,
		BirthDate: birth,
		Age:       age(birth, now),
		Sex:       sex,
	}, nil
}

// checksumOK applies the Luhn variant: every digit at an odd 0-indexed
// position is doubled (subtracting 9 when the result exceeds 9), all twelve
// leading digits are summed, and (10 - sum%10) % 10 must equal the trailing
// check digit.
func checksumOK(digits []int) bool {
	sum := 0
	for i := 0; i < 12; i++ {
		d := digits[i]
		if i%2 == 1 {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
	}
	return (10-sum%10)%10 == digits[12]
}

func age(birth, now time.Time) int {
	years := now.Year() - birth.Year()
	if now.Month() < birth.Month() ||
		(now.Month() == birth.Month() && now.Day() < birth.Day()) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}
