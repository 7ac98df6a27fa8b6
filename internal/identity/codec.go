package identity

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

var (
	ErrInvalidIdentity = errors.New("invalid file identity")
	ErrMalformedToken  = errors.New("malformed identity token")
)

const tokenVersion = "v1:"

// Field keys in encoding order. Encode always writes them in this order so that
// equal identities produce byte-identical tokens.
const (
	keyProject = "project"
	keyChange  = "change"
	keyCommit  = "commit"
	keyPath    = "path"
	keySide    = "side"
	keyBase    = "base"
)

// Encode produces the canonical token for id.
func Encode(id FileIdentity) (string, error) {
	if err := id.Validate(); err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(tokenVersion)
	writeField(&b, keyProject, id.Project, true)
	writeField(&b, keyChange, id.ChangeID, false)
	writeField(&b, keyCommit, id.Commit, false)
	writeField(&b, keyPath, id.FilePath, false)
	if id.Side != SideUnspecified {
		writeField(&b, keySide, string(id.Side), false)
	}
	if id.BaseRevision != nil {
		writeField(&b, keyBase, strconv.Itoa(*id.BaseRevision), false)
	}
	return b.String(), nil
}

// MustEncode panics on an invalid identity. Only for identities built from
// already-validated parts.
func MustEncode(id FileIdentity) string {
	token, err := Encode(id)
	if err != nil {
		panic(err)
	}
	return token
}

func writeField(b *strings.Builder, key, value string, first bool) {
	if !first {
		b.WriteByte('&')
	}
	b.WriteString(key)
	b.WriteByte('=')
	b.WriteString(url.QueryEscape(value))
}

// Decode is the inverse of Encode. Any token that is not exactly the canonical
// encoding of a valid identity is rejected.
func Decode(token string) (FileIdentity, error) {
	var id FileIdentity

	body, ok := strings.CutPrefix(token, tokenVersion)
	if !ok {
		return id, fmt.Errorf("%w: missing version prefix", ErrMalformedToken)
	}

	for _, part := range strings.Split(body, "&") {
		key, raw, ok := strings.Cut(part, "=")
		if !ok {
			return id, fmt.Errorf("%w: field %q has no value", ErrMalformedToken, part)
		}
		value, err := url.QueryUnescape(raw)
		if err != nil {
			return id, fmt.Errorf("%w: field %q: %v", ErrMalformedToken, key, err)
		}

		switch key {
		case keyProject:
			id.Project = value
		case keyChange:
			id.ChangeID = value
		case keyCommit:
			id.Commit = value
		case keyPath:
			id.FilePath = value
		case keySide:
			id.Side = Side(value)
		case keyBase:
			n, err := strconv.Atoi(value)
			if err != nil {
				return id, fmt.Errorf("%w: base revision %q", ErrMalformedToken, value)
			}
			id.BaseRevision = &n
		default:
			return id, fmt.Errorf("%w: unknown field %q", ErrMalformedToken, key)
		}
	}

	canonical, err := Encode(id)
	if err != nil {
		return FileIdentity{}, err
	}
	if canonical != token {
		return FileIdentity{}, fmt.Errorf("%w: not in canonical form", ErrMalformedToken)
	}
	return id, nil
}
