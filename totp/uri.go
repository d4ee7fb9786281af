package totp

import (
	"net/url"
	"strconv"
)

// ProvisionURI builds the otpauth:// URI consumed by authenticator apps.
func (g *Generator) ProvisionURI(secretBase32, account string) string {
	issuer := g.config.Issuer
	label := account
	if issuer != "" {
		label = issuer + ":" + account
	}

	v := url.Values{}
	v.Set("secret", secretBase32)
	if issuer != "" {
		v.Set("issuer", issuer)
	}
	v.Set("period", strconv.Itoa(g.config.Period))
	v.Set("digits", strconv.Itoa(g.config.Digits))
	v.Set("algorithm", g.config.Algorithm)

	return "otpauth://totp/" + url.PathEscape(label) + "?" + v.Encode()
}
