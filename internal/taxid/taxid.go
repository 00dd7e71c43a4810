// Package taxid validates Brazilian taxpayer identifiers: CPF (11 digits,
// individuals) and CNPJ (14 digits, businesses). Both use a weighted digit-sum
// modulo 11 check-digit scheme where remainders 10 and 11 map to check digit 0.
package taxid

import (
	"github.com/dcutelaria/storefront/internal/models"
)

// Kind distinguishes the two document variants.
type Kind string

const (
	KindCPF     Kind = "cpf"
	KindCNPJ    Kind = "cnpj"
	KindInvalid Kind = ""
)

// Classify normalizes the document to digits and reports its kind by length.
func Classify(document string) Kind {
	switch len(models.OnlyDigits(document)) {
	case 11:
		return KindCPF
	case 14:
		return KindCNPJ
	default:
		return KindInvalid
	}
}

// Valid reports whether the document (with or without punctuation) is a
// well-formed CPF or CNPJ.
func Valid(document string) bool {
	digits := models.OnlyDigits(document)
	switch len(digits) {
	case 11:
		return validCPF(digits)
	case 14:
		return validCNPJ(digits)
	default:
		return false
	}
}

// allSame rejects degenerate sequences like "11111111111", which satisfy the
// checksum but are not issued documents.
func allSame(digits string) bool {
	for i := 1; i < len(digits); i++ {
		if digits[i] != digits[0] {
			return false
		}
	}
	return true
}

func checkDigit(digits string, weights []int) int {
	sum := 0
	for i, w := range weights {
		sum += int(digits[i]-'0') * w
	}
	rest := (sum * 10) % 11
	if rest == 10 || rest == 11 {
		return 0
	}
	return rest
}

func validCPF(digits string) bool {
	if allSame(digits) {
		return false
	}

	first := checkDigit(digits, []int{10, 9, 8, 7, 6, 5, 4, 3, 2})
	if first != int(digits[9]-'0') {
		return false
	}

	second := checkDigit(digits, []int{11, 10, 9, 8, 7, 6, 5, 4, 3, 2})
	return second == int(digits[10]-'0')
}

func cnpjCheckDigit(digits string, weights []int) int {
	sum := 0
	for i, w := range weights {
		sum += int(digits[i]-'0') * w
	}
	rest := sum % 11
	if rest < 2 {
		return 0
	}
	return 11 - rest
}

func validCNPJ(digits string) bool {
	if allSame(digits) {
		return false
	}

	first := cnpjCheckDigit(digits, []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2})
	if first != int(digits[12]-'0') {
		return false
	}

	second := cnpjCheckDigit(digits, []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2})
	return second == int(digits[13]-'0')
}
