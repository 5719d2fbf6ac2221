package verification

import (
	"fmt"
	"strconv"
	"strings"
)

const auditPrompt = `You are auditing collateral evidence for a loan application.
The first file is the borrower's bill or invoice. The remaining %d files are photos of the collateral asset, taken on site.

Perform these checks:
1. Document authenticity: is the bill an official printed or digital document? Flag handwritten, edited or non-official documents.
2. Cross-object consistency: do all asset photos show the same physical object? Flag duplicates or near-duplicates (the same photo re-submitted, cropped, mirrored or re-shot from an identical angle).
3. Category check: the borrower declared the asset category as %q. Identify the actual category shown.
4. Amount extraction: read the total monetary amount printed on the bill.

Borrower: %s
Requested amount: %s

Respond with a single JSON object and nothing else:
{
  "productName": string,
  "confidenceScore": integer 0-100,
  "summary": string,
  "extractedAmount": number,
  "assetType": string,
  "isHandwritten": boolean,
  "isDuplicate": boolean
}`

// BuildPrompt renders the fixed audit instructions for b.
func BuildPrompt(b Bundle) string {
	declared := strings.TrimSpace(b.DeclaredAssetType)
	if declared == "" {
		declared = "unspecified"
	}
	borrower := strings.TrimSpace(b.BorrowerName)
	if borrower == "" {
		borrower = "unknown"
	}
	amount := "unknown"
	if b.RequestedAmount != nil {
		amount = strconv.FormatFloat(*b.RequestedAmount, 'f', -1, 64)
	}
	return fmt.Sprintf(auditPrompt, len(b.Assets), declared, borrower, amount)
}
