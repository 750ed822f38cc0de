package payment

import (
	"encoding/base64"
	"time"
)

const timestampLayout = "20060102150405"

var nairobi = loadNairobi()

func loadNairobi() *time.Location {
	if loc, err := time.LoadLocation("Africa/Nairobi"); err == nil {
		return loc
	}
	return time.FixedZone("EAT", 3*60*60)
}

// Timestamp formats t as Daraja's YYYYMMDDHHMMSS in East Africa Time.
func Timestamp(t time.Time) string {
	return t.In(nairobi).Format(timestampLayout)
}

// Password is base64(shortcode + passkey + timestamp). It is only valid together with that timestamp.
func Password(shortcode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortcode + passkey + timestamp))
}
