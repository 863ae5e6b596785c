package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/dukerupert/dateplan/internal/auth"
	"github.com/dukerupert/dateplan/internal/model"
)

// MemberHeader carries the member id asserted by the upstream gateway.
const MemberHeader = "X-Member-ID"

type MemberLookup interface {
	GetByID(ctx context.Context, id int64) (*model.Member, error)
}

type CoupleLookup interface {
	GetByMember(ctx context.Context, memberID int64) (*model.Couple, error)
}

// RequireMember resolves the requesting member from the X-Member-ID header
// and populates AuthContext, including the member's couple and partner.
func RequireMember(members MemberLookup, couples CoupleLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := strconv.ParseInt(r.Header.Get(MemberHeader), 10, 64)
			if err != nil || id <= 0 {
				unauthorized(w, "missing or invalid "+MemberHeader)
				return
			}

			member, err := members.GetByID(r.Context(), id)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "failed to load member")
				return
			}
			if member == nil {
				unauthorized(w, "unknown member")
				return
			}

			ac := auth.AuthContext{MemberID: member.ID}
			couple, err := couples.GetByMember(r.Context(), member.ID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "failed to load couple")
				return
			}
			if couple != nil {
				ac.CoupleID = couple.ID
				ac.PartnerID = couple.PartnerOf(member.ID)
			}

			next.ServeHTTP(w, r.WithContext(auth.WithAuth(r.Context(), ac)))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusUnauthorized, msg)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
