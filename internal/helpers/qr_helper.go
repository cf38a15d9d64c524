package helpers

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/farellandr/hadir/internal/models"
	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
)

// Scanned payload formats:
//
//	HIROSI_EVENT:<event uuid>:<checkin|checkout>   static, printed once per event
//	HIROSI_DQR:<token>                              dynamic, rotated by the presenter
const (
	StaticPrefix  = "HIROSI_EVENT"
	DynamicPrefix = "HIROSI_DQR"

	tokenBytes = 24
	// TokenLength is the encoded length of a dynamic token.
	TokenLength = 32
)

var ErrUnrecognizedCode = errors.New("unrecognized QR format")

type CodeKind int

const (
	CodeStatic CodeKind = iota + 1
	CodeDynamic
)

func (k CodeKind) String() string {
	switch k {
	case CodeStatic:
		return "static"
	case CodeDynamic:
		return "dynamic"
	}
	return "unknown"
}

type ScannedCode struct {
	Kind      CodeKind
	EventID   uuid.UUID
	Direction string
	Token     string
}

func StaticPayload(eventID uuid.UUID, direction string) string {
	return fmt.Sprintf("%s:%s:%s", StaticPrefix, eventID.String(), direction)
}

func DynamicPayload(token string) string {
	return DynamicPrefix + ":" + token
}

// NewDynamicToken returns 192 random bits, base64url encoded without padding.
func NewDynamicToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func isTokenShape(token string) bool {
	if len(token) != TokenLength {
		return false
	}
	_, err := base64.RawURLEncoding.DecodeString(token)
	return err == nil
}

// ParseScannedCode decides the payload kind from its scheme tag only.
func ParseScannedCode(raw string) (*ScannedCode, error) {
	raw = strings.TrimSpace(raw)

	scheme, rest, found := strings.Cut(raw, ":")
	if !found {
		return nil, ErrUnrecognizedCode
	}

	switch scheme {
	case DynamicPrefix:
		if !isTokenShape(rest) {
			return nil, ErrUnrecognizedCode
		}
		return &ScannedCode{Kind: CodeDynamic, Token: rest}, nil

	case StaticPrefix:
		parts := strings.Split(rest, ":")
		if len(parts) != 2 {
			return nil, ErrUnrecognizedCode
		}
		eventID, err := uuid.Parse(parts[0])
		if err != nil {
			return nil, ErrUnrecognizedCode
		}
		if !models.ValidDirection(parts[1]) {
			return nil, ErrUnrecognizedCode
		}
		return &ScannedCode{Kind: CodeStatic, EventID: eventID, Direction: parts[1]}, nil
	}

	return nil, ErrUnrecognizedCode
}

// QRCodePNG renders payload as a PNG of size x size pixels.
func QRCodePNG(payload string, size int) ([]byte, error) {
	return qrcode.Encode(payload, qrcode.Medium, size)
}
