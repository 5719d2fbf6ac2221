package evidence

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"collateral-evidence/internal/domain/loan"

	"github.com/go-playground/validator/v10"
)

var (
	ErrMissingIdentity = errors.New("missing loan or user id")
	ErrInvalidInput    = errors.New("invalid submission metadata")
	ErrOwnerMismatch   = errors.New("loan belongs to another user")
)

// StorageEvent is the object-finalized notification that triggers one run.
type StorageEvent struct {
	Bucket      string         `json:"bucket"`
	Name        string         `json:"name" validate:"required"`
	ContentType string         `json:"contentType"`
	Metadata    map[string]any `json:"metadata"`
}

// Submission is the typed form of one uploaded file and its metadata.
type Submission struct {
	Path        string `validate:"required"`
	Bucket      string
	ContentType string

	UserID string `validate:"required,max=64"`
	LoanID string `validate:"required,max=64"`

	Lat     *float64 `validate:"omitempty,gte=-90,lte=90"`
	Lng     *float64 `validate:"omitempty,gte=-180,lte=180"`
	RawTime string
	IsBill  bool

	BorrowerName      string   `validate:"max=255"`
	LoanAmount        *float64 `validate:"omitempty,gt=0"`
	SelectedAssetType string   `validate:"max=64"`
}

func (s Submission) HasLocation() bool { return s.Lat != nil && s.Lng != nil }

// entry builds the record persisted for an accepted submission.
func (s Submission) entry(captured time.Time) loan.FileEntry {
	e := loan.FileEntry{
		Bucket:      s.Bucket,
		Path:        s.Path,
		Timestamp:   captured.UTC(),
		ContentType: s.ContentType,
	}
	if s.HasLocation() {
		e.Location = &loan.Location{Lat: *s.Lat, Lng: *s.Lng}
	}
	return e
}

// mergeFields are the descriptive columns this submission sets on its loan.
func (s Submission) mergeFields() loan.Fields {
	f := loan.Fields{}
	if s.BorrowerName != "" {
		f["borrower_name"] = s.BorrowerName
	}
	if s.LoanAmount != nil {
		f["requested_amount"] = *s.LoanAmount
	}
	if s.SelectedAssetType != "" {
		f["declared_asset_type"] = s.SelectedAssetType
	}
	return f
}

var validate = validator.New()

// Normalize turns raw event attributes into a Submission. The returned Submission is
// partially filled on error so callers can still attribute the discard to a user.
func Normalize(ev StorageEvent) (Submission, error) {
	meta := flatten(ev.Metadata)
	sub := Submission{
		Path:              strings.TrimSpace(ev.Name),
		Bucket:            ev.Bucket,
		ContentType:       strings.ToLower(strings.TrimSpace(ev.ContentType)),
		UserID:            lookup(meta, "userid", "user_id"),
		LoanID:            lookup(meta, "loanid", "loan_id"),
		RawTime:           lookup(meta, "time", "timestamp"),
		BorrowerName:      lookup(meta, "borrowername", "borrower_name"),
		SelectedAssetType: lookup(meta, "selectedassettype", "selected_asset_type"),
	}
	if sub.LoanID == "" {
		return sub, fmt.Errorf("%w: loanId", ErrMissingIdentity)
	}
	if sub.UserID == "" {
		return sub, fmt.Errorf("%w: userId", ErrMissingIdentity)
	}

	var err error
	if sub.Lat, err = optionalFloat(meta, "lat", "latitude"); err != nil {
		return sub, err
	}
	if sub.Lng, err = optionalFloat(meta, "lng", "longitude"); err != nil {
		return sub, err
	}
	if sub.LoanAmount, err = optionalFloat(meta, "loanamount", "loan_amount"); err != nil {
		return sub, err
	}
	if sub.IsBill, err = isBill(meta, sub.Path, sub.ContentType); err != nil {
		return sub, err
	}

	if err := validate.Struct(sub); err != nil {
		return sub, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return sub, nil
}

// flatten prefers a nested "metadata" map and lowercases keys; S3 already lowercases
// user metadata so lookups are case-insensitive.
func flatten(raw map[string]any) map[string]string {
	src := raw
	for k, v := range raw {
		if strings.EqualFold(k, "metadata") {
			switch nested := v.(type) {
			case map[string]any:
				src = nested
			case map[string]string:
				src = make(map[string]any, len(nested))
				for nk, nv := range nested {
					src[nk] = nv
				}
			}
		}
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		switch t := v.(type) {
		case string:
			out[strings.ToLower(k)] = strings.TrimSpace(t)
		case float64:
			out[strings.ToLower(k)] = strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			out[strings.ToLower(k)] = strconv.FormatBool(t)
		case nil:
		default:
			out[strings.ToLower(k)] = fmt.Sprint(t)
		}
	}
	return out
}

func lookup(meta map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := meta[k]; v != "" {
			return v
		}
	}
	return ""
}

func optionalFloat(meta map[string]string, keys ...string) (*float64, error) {
	v := lookup(meta, keys...)
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return nil, fmt.Errorf("%w: %s=%q", ErrInvalidInput, keys[0], v)
	}
	return &f, nil
}

func isBill(meta map[string]string, path, contentType string) (bool, error) {
	if v := lookup(meta, "isbill", "is_bill"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, fmt.Errorf("%w: isBill=%q", ErrInvalidInput, v)
		}
		return b, nil
	}
	return strings.Contains(strings.ToLower(path), "bill") || contentType == "application/pdf", nil
}
