package fritzbox

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"encoding/xml"
	"errors"
	"fmt"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/text/encoding/unicode"
	"strconv"
	"strings"
)

const noSession = "0000000000000000"

// ErrLoginFailed indicates that the FRITZ!Box rejected the provided credentials.
var ErrLoginFailed = errors.New("fritzbox: login failed")

type sessionInfo struct {
	XMLName   xml.Name `xml:"SessionInfo"`
	SID       string   `xml:"SID"`
	Challenge string   `xml:"Challenge"`
	BlockTime int      `xml:"BlockTime"`
}

func (s sessionInfo) valid() bool {
	return s.SID != "" && s.SID != noSession
}

// challengeResponse answers a login challenge. Challenges starting with "2$" use PBKDF2. Others use the legacy MD5 scheme.
func challengeResponse(challenge, password string) (string, error) {
	if strings.HasPrefix(challenge, "2$") {
		return pbkdf2Response(challenge, password)
	}
	return md5Response(challenge, password)
}

// pbkdf2Response handles challenges of the form 2$<iter1>$<salt1>$<iter2>$<salt2>.
func pbkdf2Response(challenge, password string) (string, error) {
	parts := strings.Split(challenge, "$")
	if len(parts) != 5 {
		return "", fmt.Errorf("invalid challenge %q", challenge)
	}
	iter1, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", fmt.Errorf("invalid challenge %q: %w", challenge, err)
	}
	salt1, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", fmt.Errorf("invalid challenge %q: %w", challenge, err)
	}
	iter2, err := strconv.Atoi(parts[3])
	if err != nil {
		return "", fmt.Errorf("invalid challenge %q: %w", challenge, err)
	}
	salt2, err := hex.DecodeString(parts[4])
	if err != nil {
		return "", fmt.Errorf("invalid challenge %q: %w", challenge, err)
	}

	hash1 := pbkdf2.Key([]byte(password), salt1, iter1, sha256.Size, sha256.New)
	hash2 := pbkdf2.Key(hash1, salt2, iter2, sha256.Size, sha256.New)
	return parts[4] + "$" + hex.EncodeToString(hash2), nil
}

func md5Response(challenge, password string) (string, error) {
	// the box replaces any character outside of latin-1 by a dot
	latin1 := strings.Map(func(r rune) rune {
		if r > 255 {
			return '.'
		}
		return r
	}, challenge+"-"+password)

	encoded, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder().String(latin1)
	if err != nil {
		return "", fmt.Errorf("encode challenge: %w", err)
	}
	sum := md5.Sum([]byte(encoded))
	return challenge + "-" + hex.EncodeToString(sum[:]), nil
}
