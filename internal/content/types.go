// internal/content/types.go
package content

import (
	"net/url"

	"revview/internal/identity"
)

// URIScheme names virtual documents served from a Store.
const URIScheme = "revview-file"

// Blob is file content at a specific revision together with the identity it
// was fetched for.
type Blob struct {
	Buffer   []byte
	Identity identity.FileIdentity
}

// emptyBlob stands in for a side that has no content, such as the old side
// of an added file.
func emptyBlob(id identity.FileIdentity) *Blob {
	return &Blob{Buffer: []byte{}, Identity: id}
}

func (b *Blob) Text() string {
	return string(b.Buffer)
}

// IsEmpty reports whether the blob stands for "no content on this side".
// It follows the identity, not the buffer: an empty file is not empty.
func (b *Blob) IsEmpty() bool {
	return b.Identity.IsEmpty()
}

// VirtualURI addresses the blob as a document a diff viewer can open. The
// query carries the encoded identity with side and base applied.
func (b *Blob) VirtualURI(side identity.Side, base *int) (string, error) {
	token, err := identity.Encode(b.Identity.WithSide(side, base))
	if err != nil {
		return "", err
	}
	path := (&url.URL{Path: b.Identity.FilePath}).EscapedPath()
	u := url.URL{Scheme: URIScheme, Opaque: path, RawQuery: token}
	return u.String(), nil
}

// ParseVirtualURI extracts the identity token from a URI built by
// VirtualURI.
func ParseVirtualURI(raw string) (identity.FileIdentity, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != URIScheme {
		return identity.FileIdentity{}, identity.ErrMalformedToken
	}
	return identity.Decode(u.RawQuery)
}
