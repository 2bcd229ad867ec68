package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// GenerateTicketNumber builds <PREFIX>-<4 letters><5 digits>. The letters come
// from the attendee's name and are padded with X.
func GenerateTicketNumber(prefix, fullName string) string {
	var letters strings.Builder
	for _, r := range fullName {
		if letters.Len() == 4 {
			break
		}
		r = unicode.ToUpper(r)
		if r >= 'A' && r <= 'Z' {
			letters.WriteRune(r)
		}
	}
	for letters.Len() < 4 {
		letters.WriteByte('X')
	}

	randomNum, err := rand.Int(rand.Reader, big.NewInt(100000))
	if err != nil {
		randomNum = big.NewInt(0)
	}
	return fmt.Sprintf("%s-%s%05d", strings.ToUpper(prefix), letters.String(), randomNum.Int64())
}

// GenerateRequestID tags one API request in the logs.
func GenerateRequestID() string {
	return uuid.NewString()
}
