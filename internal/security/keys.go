package security

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

// KeyMaterial selects the token signing scheme: RS256 when an RSA key is
// present, HS256 with Secret otherwise.
type KeyMaterial struct {
	Secret []byte
	RSAPub *rsa.PublicKey
	RSAPri *rsa.PrivateKey // optional; nil => verify-only
}

// LoadKeyMaterial parses the configured keys. Either a secret or a public
// key PEM must be provided.
func LoadKeyMaterial(secret, pubPEM, priPEM string) (KeyMaterial, error) {
	km := KeyMaterial{Secret: []byte(secret)}
	if pubPEM == "" && priPEM == "" {
		if secret == "" {
			return KeyMaterial{}, errors.New("missing jwt secret or rsa keys")
		}
		return km, nil
	}
	if priPEM != "" {
		pri, err := parseRSAPrivateKeyFromPEM([]byte(priPEM))
		if err != nil {
			return KeyMaterial{}, fmt.Errorf("parse rsa private key: %w", err)
		}
		km.RSAPri = pri
		km.RSAPub = &pri.PublicKey
	}
	if pubPEM != "" {
		pub, err := parseRSAPublicKeyFromPEM([]byte(pubPEM))
		if err != nil {
			return KeyMaterial{}, fmt.Errorf("parse rsa public key: %w", err)
		}
		km.RSAPub = pub
	}
	return km, nil
}

func parseRSAPublicKeyFromPEM(pemBytes []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("no pem block")
	}
	pubAny, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	pub, ok := pubAny.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("not rsa public key")
	}
	return pub, nil
}

func parseRSAPrivateKeyFromPEM(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("no pem block in RSA private key")
	}

	// try PKCS#8 first
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err == nil {
		if rsaKey, ok := key.(*rsa.PrivateKey); ok {
			return rsaKey, nil
		}
		return nil, errors.New("not an RSA private key in PKCS#8")
	}

	rsaKey, err2 := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err2 != nil {
		return nil, fmt.Errorf("parse RSA private key failed (PKCS#8: %v, PKCS#1: %v)", err, err2)
	}
	return rsaKey, nil
}
