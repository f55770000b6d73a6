package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "gmq/pkg/domain-errors"
)

func TestNormalizeName(t *testing.T) {
	decomposed := "Jose\u0301  Marti\u0301 "
	assert.Equal(t, "Jos\u00e9 Mart\u00ed", NormalizeName(decomposed))
}

func TestValidName(t *testing.T) {
	for _, ok := range []string{"Ana", "María José", "O'Neil", "Pérez-Núñez", "St. John"} {
		assert.True(t, ValidName(ok), ok)
	}
	for _, bad := range []string{"", "R2D2", "<script>", "--", "Ana;"} {
		assert.False(t, ValidName(bad), bad)
	}
}

func TestSSN(t *testing.T) {
	assert.Equal(t, "123456789", NormalizeSSN(" 123-45-6789 "))
	assert.True(t, ValidSSN("123456789"))
	assert.False(t, ValidSSN("12345678"))
	assert.False(t, ValidSSN("12345678a"))
	assert.False(t, ValidSSN("000000000"))
}

func TestValidEmail(t *testing.T) {
	assert.True(t, ValidEmail("ana@example.pr.gov"))
	assert.False(t, ValidEmail("Ana <ana@example.com>"))
	assert.False(t, ValidEmail("ana@localhost"))
	assert.False(t, ValidEmail("ana"))
}

func TestValidIP(t *testing.T) {
	assert.True(t, ValidIP("192.168.1.1"))
	assert.True(t, ValidIP("::1"))
	assert.False(t, ValidIP("999.1.1.1"))
}

func TestValidLicense(t *testing.T) {
	assert.True(t, ValidLicense("ABC1234"))
	assert.False(t, ValidLicense("ABC-1234"))
	assert.False(t, ValidLicense(""))
}

func TestValidateBirthDate(t *testing.T) {
	loc := time.FixedZone("AST", -4*3600)
	now := time.Date(2024, 6, 15, 10, 0, 0, 0, loc)

	require.NoError(t, ValidateBirthDate("15/06/2006", now, loc))

	cases := map[string]int{
		"":           dErrors.AppMissingBirthDate,
		"2006-06-15": dErrors.AppInvalidBirthDate,
		"31/02/2000": dErrors.AppInvalidBirthDate,
		"01/01/2030": dErrors.AppInvalidBirthDate,
		"16/06/2006": dErrors.AppNotOldEnough,
	}
	for input, code := range cases {
		err := ValidateBirthDate(input, now, loc)
		de, ok := dErrors.As(err)
		require.True(t, ok, input)
		assert.Equal(t, code, de.AppCode, input)
		assert.Equal(t, dErrors.CodeValidation, de.Code)
	}
}

func TestAgeAt(t *testing.T) {
	birth := time.Date(2000, 2, 29, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 23, AgeAt(birth, time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 24, AgeAt(birth, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)))
}

func TestParseLanguage(t *testing.T) {
	l, ok := ParseLanguage(" English ")
	assert.True(t, ok)
	assert.Equal(t, LanguageEnglish, l)
	_, ok = ParseLanguage("french")
	assert.False(t, ok)
}

func TestFullNameAndClone(t *testing.T) {
	tx := &Transaction{FirstName: "Ana", LastName: "Rivera", MotherLastName: "Soto"}
	assert.Equal(t, "Ana Rivera Soto", tx.FullName())

	tx.SetIdentityValidated(true)
	tx.History = []HistoryEntry{{Event: EventSaveFirst}}
	cp := tx.Clone()
	*cp.IdentityValidated = false
	cp.History[0].Event = EventFail
	assert.True(t, *tx.IdentityValidated)
	assert.Equal(t, EventSaveFirst, tx.History[0].Event)
}

func TestNewID(t *testing.T) {
	id := NewID()
	assert.Len(t, id, len(IDPrefix)+32)
	assert.Regexp(t, `^PRCAP[0-9A-F]{32}$`, id)
}

func TestErrorTelemetry(t *testing.T) {
	at := time.Now()
	tx := &Transaction{}
	tx.RecordRCIError("rci", "timeout", at)
	tx.RecordEmailError("smtp", "refused", at)
	assert.Equal(t, 2, tx.ErrorCount)
	assert.Equal(t, 1, tx.RCIErrorCount)
	assert.Equal(t, 1, tx.EmailErrorCount)
	assert.Equal(t, "smtp", tx.LastErrorType)
	assert.Equal(t, "refused", tx.LastErrorMessage)
}
