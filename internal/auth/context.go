// Package auth carries the identity of the requesting member through a
// request context. Authentication itself happens upstream.
package auth

import "context"

type contextKey struct{}

type AuthContext struct {
	MemberID int64
	// CoupleID is zero while the member is not connected.
	CoupleID  int64
	PartnerID int64
}

func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(AuthContext)
	return ac, ok
}

func MemberID(ctx context.Context) int64 {
	ac, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return ac.MemberID
}

func CoupleID(ctx context.Context) int64 {
	ac, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return ac.CoupleID
}

// Audience returns the members that should hear about a change made by the
// requester: the requester and, when connected, their partner.
func Audience(ctx context.Context) []int64 {
	ac, ok := FromContext(ctx)
	if !ok {
		return nil
	}
	if ac.PartnerID == 0 {
		return []int64{ac.MemberID}
	}
	return []int64{ac.MemberID, ac.PartnerID}
}
