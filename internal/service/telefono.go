package service

import (
	"strings"

	"github.com/ttacon/libphonenumber"
)

// NormalizarTelefono returns the E.164 form of raw when it parses as a valid
// number for region, and the trimmed input otherwise.
func NormalizarTelefono(raw, region string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if region == "" {
		region = "CL"
	}
	num, err := libphonenumber.Parse(raw, region)
	if err != nil || !libphonenumber.IsValidNumber(num) {
		return raw
	}
	return libphonenumber.Format(num, libphonenumber.E164)
}

// NormalizarRut uppercases a RUT and strips dots and spaces, so
// "12.345.678-k" and "12345678-K" dedupe to the same client.
func NormalizarRut(raw string) string {
	r := strings.ToUpper(strings.TrimSpace(raw))
	r = strings.ReplaceAll(r, ".", "")
	return strings.ReplaceAll(r, " ", "")
}
