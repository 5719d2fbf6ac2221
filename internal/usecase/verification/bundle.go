package verification

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path"

	"collateral-evidence/internal/domain/loan"
)

var ErrIncompleteBundle = errors.New("bundle is incomplete")

// Bundle is one bill plus the asset photos handed to the oracle together.
type Bundle struct {
	LoanID            string
	BorrowerName      string
	RequestedAmount   *float64
	DeclaredAssetType string
	Bill              loan.FileEntry
	Assets            []loan.FileEntry
}

// BundleFrom snapshots a ready loan; assets keep append order.
func BundleFrom(l *loan.Loan, size int) (Bundle, error) {
	if !l.BundleReady(size) {
		return Bundle{}, fmt.Errorf("%w: loan %s has bill=%t assets=%d/%d",
			ErrIncompleteBundle, l.LoanID, l.Bill() != nil, len(l.Assets()), size)
	}
	assets := make([]loan.FileEntry, len(l.Assets()))
	copy(assets, l.Assets())
	return Bundle{
		LoanID:            l.LoanID,
		BorrowerName:      l.BorrowerName,
		RequestedAmount:   l.RequestedAmount,
		DeclaredAssetType: l.DeclaredAssetType,
		Bill:              *l.Bill(),
		Assets:            assets,
	}, nil
}

// FileRef points the oracle at one stored file.
type FileRef struct {
	URI      string
	MIMEType string
}

// Request is the ordered multi-part input: prompt, bill, then assets.
type Request struct {
	Prompt string
	Files  []FileRef
}

// Oracle is the external multimodal verification service. It returns the raw model text.
type Oracle interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// URIResolver maps a stored object to a URI the oracle can fetch. bucket is the one
// the upload landed in and may be empty for entries recorded without it.
type URIResolver interface {
	FileURI(ctx context.Context, bucket, objectPath string) (string, error)
}

func mimeOf(e loan.FileEntry) string {
	if e.ContentType != "" {
		return e.ContentType
	}
	if t := mime.TypeByExtension(path.Ext(e.Path)); t != "" {
		return t
	}
	return "image/jpeg"
}

func buildRequest(ctx context.Context, uris URIResolver, b Bundle) (Request, error) {
	req := Request{Prompt: BuildPrompt(b), Files: make([]FileRef, 0, len(b.Assets)+1)}
	for _, e := range append([]loan.FileEntry{b.Bill}, b.Assets...) {
		uri, err := uris.FileURI(ctx, e.Bucket, e.Path)
		if err != nil {
			return Request{}, fmt.Errorf("resolve %s: %w", e.Path, err)
		}
		req.Files = append(req.Files, FileRef{URI: uri, MIMEType: mimeOf(e)})
	}
	return req, nil
}
