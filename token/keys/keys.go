package keys

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// JWT algorithms (string values used in JWKs and headers)
const (
	RS256 = "RS256"
	ES256 = "ES256"
	ES384 = "ES384"
	ES512 = "ES512"
)

// KeyPair represents a public/private key pair for signing tokens
type KeyPair struct {
	KeyID      string
	PrivateKey crypto.Signer
	PublicKey  crypto.PublicKey
	Algorithm  string // RS256, ES256, ES384, ES512
}

// NewKeyPair wraps a private key, picking the algorithm from the key type.
// An empty keyID is replaced by the key's RFC 7638 thumbprint.
func NewKeyPair(keyID string, privateKey crypto.Signer) (*KeyPair, error) {
	kp := &KeyPair{
		KeyID:      keyID,
		PrivateKey: privateKey,
		PublicKey:  privateKey.Public(),
	}

	switch key := privateKey.(type) {
	case *rsa.PrivateKey:
		kp.Algorithm = RS256
	case *ecdsa.PrivateKey:
		switch key.Curve {
		case elliptic.P256():
			kp.Algorithm = ES256
		case elliptic.P384():
			kp.Algorithm = ES384
		case elliptic.P521():
			kp.Algorithm = ES512
		default:
			return nil, errors.New("unsupported elliptic curve")
		}
	default:
		return nil, errors.Errorf("unsupported private key type %T", privateKey)
	}

	if kp.KeyID == "" {
		thumbprint, err := Thumbprint(kp.PublicKey)
		if err != nil {
			return nil, err
		}
		kp.KeyID = thumbprint
	}
	return kp, nil
}

// GenerateRSAKeyPair generates a new RSA key pair for RS256 signing
func GenerateRSAKeyPair(keyID string, bits int) (*KeyPair, error) {
	if bits < 2048 {
		bits = 2048
	}

	privateKey, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate RSA key")
	}
	return NewKeyPair(keyID, privateKey)
}

// GenerateECDSAKeyPair generates a new P-256 key pair for ES256 signing
func GenerateECDSAKeyPair(keyID string) (*KeyPair, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate ECDSA key")
	}
	return NewKeyPair(keyID, privateKey)
}

// GetSigningMethod returns the JWT signing method for this key pair
func (kp *KeyPair) GetSigningMethod() jwt.SigningMethod {
	switch kp.Algorithm {
	case ES256:
		return jwt.SigningMethodES256
	case ES384:
		return jwt.SigningMethodES384
	case ES512:
		return jwt.SigningMethodES512
	default:
		return jwt.SigningMethodRS256
	}
}

// ExportPublicKeyPEM exports the public key as PEM
func (kp *KeyPair) ExportPublicKeyPEM() (string, error) {
	pubKeyBytes, err := x509.MarshalPKIXPublicKey(kp.PublicKey)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal public key")
	}

	pubKeyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: pubKeyBytes,
	})

	return string(pubKeyPEM), nil
}

// ExportPrivateKeyPEM exports the private key as PKCS#8 PEM
func (kp *KeyPair) ExportPrivateKeyPEM() (string, error) {
	privateKeyBytes, err := x509.MarshalPKCS8PrivateKey(kp.PrivateKey)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal private key")
	}

	privateKeyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "PRIVATE KEY",
		Bytes: privateKeyBytes,
	})

	return string(privateKeyPEM), nil
}

// JWK returns the public half of the key pair as a JSON Web Key
func (kp *KeyPair) JWK() jose.JSONWebKey {
	return jose.JSONWebKey{
		Key:       kp.PublicKey,
		KeyID:     kp.KeyID,
		Algorithm: kp.Algorithm,
		Use:       "sig",
	}
}

// JWKS returns the JSON Web Key Set served to resource servers
func (kp *KeyPair) JWKS() jose.JSONWebKeySet {
	return jose.JSONWebKeySet{Keys: []jose.JSONWebKey{kp.JWK()}}
}

// Thumbprint returns the base64url SHA-256 JWK thumbprint of a public key.
func Thumbprint(publicKey crypto.PublicKey) (string, error) {
	jwk := jose.JSONWebKey{Key: publicKey}
	sum, err := jwk.Thumbprint(crypto.SHA256)
	if err != nil {
		return "", errors.Wrap(err, "failed to compute key thumbprint")
	}
	return base64.RawURLEncoding.EncodeToString(sum), nil
}

// LoadPrivateKeyFromPEM parses a PKCS#1, PKCS#8 or SEC 1 private key. A
// passphrase is required for PEM blocks carrying RFC 1423 encryption headers.
func LoadPrivateKeyFromPEM(pemData []byte, passphrase string) (crypto.Signer, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, errors.New("failed to decode PEM block")
	}

	der := block.Bytes
	// RFC 1423 headers are the only encrypted PEM format x509 can read.
	if x509.IsEncryptedPEMBlock(block) {
		if passphrase == "" {
			return nil, errors.New("private key is encrypted but no passphrase was given")
		}
		var err error
		der, err = x509.DecryptPEMBlock(block, []byte(passphrase))
		if err != nil {
			return nil, errors.Wrap(err, "failed to decrypt private key")
		}
	}

	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	if key, err := x509.ParseECPrivateKey(der); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse private key")
	}
	signer, ok := parsed.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("unsupported private key type %T", parsed)
	}
	return signer, nil
}

// LoadPublicKeyFromPEM parses a PKIX or PKCS#1 public key, or the key of a certificate.
func LoadPublicKeyFromPEM(pemData []byte) (crypto.PublicKey, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, errors.New("failed to decode PEM block")
	}

	switch block.Type {
	case "CERTIFICATE":
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse certificate")
		}
		return cert.PublicKey, nil
	case "RSA PUBLIC KEY":
		key, err := x509.ParsePKCS1PublicKey(block.Bytes)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse RSA public key")
		}
		return key, nil
	default:
		key, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse public key")
		}
		return key, nil
	}
}

// LoadKeyPairFromPEM loads a key pair from a PEM-encoded private key
func LoadKeyPairFromPEM(keyID string, privateKeyPEM []byte, passphrase string) (*KeyPair, error) {
	privateKey, err := LoadPrivateKeyFromPEM(privateKeyPEM, passphrase)
	if err != nil {
		return nil, err
	}
	return NewKeyPair(keyID, privateKey)
}
