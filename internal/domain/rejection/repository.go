package rejection

import "context"

type Repository interface {
	Create(ctx context.Context, r *Rejection) error
	ListByUserID(ctx context.Context, userID string) ([]Rejection, error)
}
