package jwt

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func newHSManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		TTL:           time.Hour,
		SigningMethod: MethodHS256,
		PrivateKey:    bytes.Repeat([]byte{7}, 32),
		Issuer:        "goIdentity",
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestCreateParseRoundTrip(t *testing.T) {
	m := newHSManager(t)

	tok, err := m.Create("u1", "purpose-digest", "stamp-digest", testNow)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	claims, err := m.Parse(tok, testNow.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "u1" || claims.Purpose != "purpose-digest" || claims.Stamp != "stamp-digest" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParseRejectsExpired(t *testing.T) {
	m := newHSManager(t)

	tok, err := m.Create("u1", "p", "s", testNow)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := m.Parse(tok, testNow.Add(time.Hour+time.Second)); err == nil {
		t.Fatal("expected expired token to fail")
	}
}

func TestParseRejectsWrongAlgorithm(t *testing.T) {
	pub, _ := newEdKeys(t)
	m, err := NewManager(Config{TTL: time.Minute, SigningMethod: MethodEd25519, PublicKey: pub})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	claims := TokenClaims{RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "u1",
		IssuedAt:  gjwt.NewNumericDate(testNow),
		ExpiresAt: gjwt.NewNumericDate(testNow.Add(time.Minute)),
	}}
	tok := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims)
	token, err := tok.SignedString([]byte("secret-secret-secret-secret-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := m.Parse(token, testNow); err == nil {
		t.Fatal("expected wrong algorithm to be rejected")
	}
}

func TestParseIssuerAndLeeway(t *testing.T) {
	_, priv := newEdKeys(t)
	m, err := NewManager(Config{
		TTL:           time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     priv.Public().(ed25519.PublicKey),
		Issuer:        "goIdentity",
		Leeway:        30 * time.Second,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	wrongIssuer := TokenClaims{RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "u1",
		Issuer:    "other",
		ExpiresAt: gjwt.NewNumericDate(testNow.Add(time.Minute)),
		IssuedAt:  gjwt.NewNumericDate(testNow),
	}}
	badIssuer, _ := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, wrongIssuer).SignedString(priv)
	if _, err := m.Parse(badIssuer, testNow); err == nil {
		t.Fatal("expected wrong issuer to fail")
	}

	tok, err := m.Create("u1", "p", "s", testNow)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := m.Parse(tok, testNow.Add(time.Minute+15*time.Second)); err != nil {
		t.Fatalf("expected token within leeway to pass: %v", err)
	}
	if _, err := m.Parse(tok, testNow.Add(2*time.Minute)); err == nil {
		t.Fatal("expected token past leeway to fail")
	}
}

func TestParseRejectsMissingExpiry(t *testing.T) {
	m := newHSManager(t)
	claims := TokenClaims{RegisteredClaims: gjwt.RegisteredClaims{
		Subject:  "u1",
		Issuer:   "goIdentity",
		IssuedAt: gjwt.NewNumericDate(testNow),
	}}
	tok, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString(bytes.Repeat([]byte{7}, 32))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := m.Parse(tok, testNow); err == nil {
		t.Fatal("expected token without exp to fail")
	}
}

func TestParseUnknownKidFails(t *testing.T) {
	pub1, priv1 := newEdKeys(t)
	pub2, _ := newEdKeys(t)
	m, err := NewManager(Config{
		TTL:           time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv1,
		PublicKey:     pub1,
		KeyID:         "k1",
		VerifyKeys: map[string][]byte{
			"k1": pub1,
		},
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	claims := TokenClaims{RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "u1",
		IssuedAt:  gjwt.NewNumericDate(testNow),
		ExpiresAt: gjwt.NewNumericDate(testNow.Add(time.Minute)),
	}}
	tok := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, claims)
	tok.Header["kid"] = "k2"
	token, err := tok.SignedString(priv1)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := m.Parse(token, testNow); err == nil {
		t.Fatal("expected unknown kid failure")
	}

	good, err := m.Create("u1", "p", "s", testNow)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := m.Parse(good, testNow); err != nil {
		t.Fatalf("expected known kid token to pass: %v", err)
	}

	m2, _ := NewManager(Config{TTL: time.Minute, SigningMethod: MethodEd25519, PublicKey: pub2, VerifyKeys: map[string][]byte{"k1": pub2}})
	if _, err := m2.Parse(good, testNow); err == nil {
		t.Fatal("expected parse failure with mismatched key set")
	}
}

func TestNewManagerRejectsShortHMACKey(t *testing.T) {
	if _, err := NewManager(Config{TTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: []byte("short")}); err == nil {
		t.Fatal("expected short hs256 key to be rejected")
	}
	if _, err := NewManager(Config{TTL: time.Minute, SigningMethod: "rs256", PrivateKey: bytes.Repeat([]byte{1}, 32)}); err == nil {
		t.Fatal("expected unsupported method to be rejected")
	}
}
