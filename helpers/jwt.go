package helpers

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"os"
	"time"

	"github.com/cristalhq/jwt/v5"
)

// CreateToken allows to create JWT session tokens. The subject
// is the user ID; tokens expire after seven days
func CreateToken(uid string) (string, error) {
	block, _ := pem.Decode([]byte(os.Getenv("RSA_PRIVATE_KEY")))
	if block == nil {
		return "", errors.New("missing RSA private key")
	}

	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return "", err
	}

	signer, err := jwt.NewSignerRS(jwt.RS256, key)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()

	token, err := jwt.NewBuilder(signer).Build(&jwt.RegisteredClaims{
		Subject:   uid,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.AddDate(0, 0, 7)),
		Issuer:    "https://www.pictura.app",
	})
	if err != nil {
		return "", err
	}

	return token.String(), nil
}

// CheckToken validates a session token and returns the user ID
// it was issued for
func CheckToken(token string) (string, error) {
	block, _ := pem.Decode([]byte(os.Getenv("RSA_PUBLIC_KEY")))
	if block == nil {
		return "", errors.New("missing RSA public key")
	}

	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return "", err
	}

	rsaKey, ok := key.(*rsa.PublicKey)
	if !ok {
		return "", errors.New("RSA public key expected")
	}

	verifier, err := jwt.NewVerifierRS(jwt.RS256, rsaKey)
	if err != nil {
		return "", err
	}

	tokenBytes := []byte(token)
	newToken, err := jwt.Parse(tokenBytes, verifier)
	if err != nil {
		return "", err
	}

	if err = verifier.Verify(newToken); err != nil {
		return "", err
	}

	// get Registered claims
	var claims jwt.RegisteredClaims
	if err = json.Unmarshal(newToken.Claims(), &claims); err != nil {
		return "", err
	}

	if !claims.IsValidAt(time.Now()) {
		return "", errors.New("invalid time")
	}

	return claims.Subject, nil
}
