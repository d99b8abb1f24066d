package core

import (
	"math/rand/v2"
	"strconv"
	"strings"
)

const isbnPrefix = "978"

// generateISBN losuje ISBN-13 z prefiksem 978 i poprawną cyfrą kontrolną
func generateISBN() string {
	var b strings.Builder
	b.WriteString(isbnPrefix)
	for i := 0; i < 9; i++ {
		b.WriteByte(byte('0' + rand.IntN(10)))
	}
	body := b.String()
	return body + strconv.Itoa(isbnCheckDigit(body))
}

// isbnCheckDigit liczy cyfrę kontrolną dla 12 pierwszych cyfr ISBN-13
func isbnCheckDigit(body string) int {
	sum := 0
	for i, r := range body {
		d := int(r - '0')
		if i%2 == 1 {
			d *= 3
		}
		sum += d
	}
	return (10 - sum%10) % 10
}

// ValidISBN13 sprawdza format i cyfrę kontrolną ISBN-13
func ValidISBN13(isbn string) bool {
	if len(isbn) != 13 {
		return false
	}
	for _, r := range isbn {
		if r < '0' || r > '9' {
			return false
		}
	}
	return isbnCheckDigit(isbn[:12]) == int(isbn[12]-'0')
}
