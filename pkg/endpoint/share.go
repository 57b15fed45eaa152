package endpoint

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ShareParam is the query parameter that carries a share token.
const ShareParam = "share"

var ErrInvalidShareToken = errors.New("invalid share token")

// EncodeShare serializes the endpoint to JSON and base64-encodes it.
func EncodeShare(e *Endpoint) (string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("encode share: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// ShareURL appends the share token of e to base.
func ShareURL(base string, e *Endpoint) (string, error) {
	token, err := EncodeShare(e)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	q := u.Query()
	q.Set(ShareParam, token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// DecodeShare reverses EncodeShare. The input may also be a full share URL.
// The returned endpoint always carries a fresh id.
func DecodeShare(token string) (*Endpoint, error) {
	token = strings.TrimSpace(token)
	if strings.Contains(token, "://") || strings.HasPrefix(token, "?") {
		if u, err := url.Parse(token); err == nil {
			if v := u.Query().Get(ShareParam); v != "" {
				token = v
			}
		}
	}
	if token == "" {
		return nil, ErrInvalidShareToken
	}

	var data []byte
	var err error
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		data, err = enc.DecodeString(token)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidShareToken, err)
	}

	var ep Endpoint
	if err := json.Unmarshal(data, &ep); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidShareToken, err)
	}
	ep.ID = NewID()
	ep.Normalize()
	return &ep, nil
}
