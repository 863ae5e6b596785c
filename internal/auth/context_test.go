package auth

import (
	"context"
	"reflect"
	"testing"
)

func TestWithAuthAndFromContext(t *testing.T) {
	ac := AuthContext{
		MemberID:  1,
		CoupleID:  2,
		PartnerID: 3,
	}

	ctx := WithAuth(context.Background(), ac)
	got, ok := FromContext(ctx)
	if !ok {
		t.Fatal("expected AuthContext in context")
	}
	if got != ac {
		t.Errorf("AuthContext = %+v, want %+v", got, ac)
	}
}

func TestFromContextMissing(t *testing.T) {
	_, ok := FromContext(context.Background())
	if ok {
		t.Error("expected false for missing AuthContext")
	}
}

func TestMemberID(t *testing.T) {
	ctx := WithAuth(context.Background(), AuthContext{MemberID: 7})
	if MemberID(ctx) != 7 {
		t.Errorf("MemberID = %d, want 7", MemberID(ctx))
	}
	if MemberID(context.Background()) != 0 {
		t.Error("expected 0 for missing context")
	}
}

func TestCoupleID(t *testing.T) {
	ctx := WithAuth(context.Background(), AuthContext{CoupleID: 42})
	if CoupleID(ctx) != 42 {
		t.Errorf("CoupleID = %d, want 42", CoupleID(ctx))
	}
	if CoupleID(context.Background()) != 0 {
		t.Error("expected 0 for missing context")
	}
}

func TestAudience(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
		want []int64
	}{
		{"missing", context.Background(), nil},
		{"single", WithAuth(context.Background(), AuthContext{MemberID: 1}), []int64{1}},
		{"couple", WithAuth(context.Background(), AuthContext{MemberID: 1, CoupleID: 9, PartnerID: 2}), []int64{1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Audience(tt.ctx); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Audience = %v, want %v", got, tt.want)
			}
		})
	}
}
