package utils

import "strings"

// NormalizeEmail обрезает пробелы и приводит доменную часть адреса к
// нижнему регистру. Локальная часть не меняется.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at+1] + strings.ToLower(email[at+1:])
}
