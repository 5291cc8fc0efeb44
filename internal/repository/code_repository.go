package repository

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/iliyamo/access-gate/internal/model"
	"github.com/iliyamo/access-gate/internal/store"
)

const (
	// codeAlphabet leaves out I, O, 0 and 1 so codes survive being read aloud
	// or copied by hand.  Its length (32) divides 256, so masking a random
	// byte picks every symbol with the same probability.
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	// maxCodeAttempts bounds the collision-avoidance loop in Issue.
	maxCodeAttempts = 6

	// maxIndexAttempts bounds the session-index create/read loop in Issue.
	maxIndexAttempts = 3

	codeKeyPrefix    = "code:"
	sessionKeyPrefix = "session:"
)

// IssueMetadata carries the optional details captured at issuance.
type IssueMetadata struct {
	Email string
}

// IssueResult is returned by Issue.  IsNew is false when the checkout
// session had already been redeemed and the earlier code is returned.
type IssueResult struct {
	Code  string
	IsNew bool
}

// CodeRepo is the access-code registry.  It owns two key namespaces in the
// store: code:<CODE> holds the AccessCode record and session:<ID> points from
// a checkout session to the code issued for it.
type CodeRepo struct {
	store    store.Store
	prefix   string
	generate func(prefix string) (string, error)
	now      func() time.Time
}

// NewCodeRepo returns a registry whose codes start with prefix (e.g. "BS").
func NewCodeRepo(s store.Store, prefix string) *CodeRepo {
	return &CodeRepo{store: s, prefix: prefix, generate: GenerateCode, now: time.Now}
}

// WithGenerator replaces the code generator.  Tests use it to force
// collisions.
func (r *CodeRepo) WithGenerator(g func(prefix string) (string, error)) *CodeRepo {
	r.generate = g
	return r
}

// GenerateCode returns a random code in the PREFIX-XXXXX-XXXXX format.
func GenerateCode(prefix string) (string, error) {
	buf := make([]byte, 10)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.Grow(len(prefix) + 12)
	sb.WriteString(prefix)
	sb.WriteByte('-')
	for i, b := range buf {
		sb.WriteByte(codeAlphabet[int(b)&(len(codeAlphabet)-1)])
		if i == 4 {
			sb.WriteByte('-')
		}
	}
	return sb.String(), nil
}

// NormalizeCode trims and upper-cases user input so "bs-abcde-fghjk " and
// "BS-ABCDE-FGHJK" address the same record.
func NormalizeCode(code string) string { return strings.ToUpper(strings.TrimSpace(code)) }

// Issue returns the access code bound to sessionID, creating one when none
// exists.  The caller is the sole authority on payment status: paid is taken
// as given and never re-derived here.
//
// Both writes are conditional creates.  The code record uses NX so a
// candidate colliding with an existing code is detected by the write itself,
// and the session index uses NX so two concurrent issuances for the same
// session agree on a single code.  The writes are not transactional: if the
// second one fails with ErrUnavailable the code record stays behind and a
// retry issues a new code.
func (r *CodeRepo) Issue(ctx context.Context, sessionID string, paid bool, meta IssueMetadata) (IssueResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return IssueResult{}, ErrMissingSessionID
	}
	if !paid {
		return IssueResult{}, ErrPaymentNotConfirmed
	}

	if existing, ok, err := r.store.Get(ctx, sessionKeyPrefix+sessionID); err != nil {
		return IssueResult{}, err
	} else if ok && existing != "" {
		return IssueResult{Code: existing, IsNew: false}, nil
	}

	code, err := r.placeNewCode(ctx, sessionID, meta)
	if err != nil {
		return IssueResult{}, err
	}

	for attempt := 0; attempt < maxIndexAttempts; attempt++ {
		ok, err := r.store.Set(ctx, sessionKeyPrefix+sessionID, code, store.SetOptions{OnlyIfAbsent: true})
		if err != nil {
			return IssueResult{}, err
		}
		if ok {
			return IssueResult{Code: code, IsNew: true}, nil
		}
		// A concurrent request for the same session indexed its code first.
		winner, found, err := r.store.Get(ctx, sessionKeyPrefix+sessionID)
		if err != nil {
			return IssueResult{}, err
		}
		if found && winner != "" {
			if winner != code {
				r.dropOrphan(ctx, code)
			}
			return IssueResult{Code: winner, IsNew: winner == code}, nil
		}
		// The index vanished between the failed create and the read.
	}
	r.dropOrphan(ctx, code)
	return IssueResult{}, ErrSessionIndexConflict
}

// dropOrphan deletes a code record that never got indexed.  Failures are
// logged, not returned.
func (r *CodeRepo) dropOrphan(ctx context.Context, code string) {
	if err := r.store.Del(ctx, codeKeyPrefix+code); err != nil {
		log.Printf("access-code: drop orphan %s failed: %v", code, err)
	}
}

// placeNewCode writes a fresh AccessCode record under a code nobody holds.
func (r *CodeRepo) placeNewCode(ctx context.Context, sessionID string, meta IssueMetadata) (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := r.generate(r.prefix)
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		rec := model.AccessCode{
			Code:      code,
			SessionID: sessionID,
			Email:     strings.TrimSpace(meta.Email),
			CreatedAt: r.now().UTC(),
		}
		payload, err := json.Marshal(rec)
		if err != nil {
			return "", err
		}
		ok, err := r.store.Set(ctx, codeKeyPrefix+code, string(payload), store.SetOptions{OnlyIfAbsent: true})
		if err != nil {
			return "", err
		}
		if ok {
			return code, nil
		}
	}
	return "", ErrCodeSpaceExhausted
}

// Exists reports whether code has been issued.  Only a boolean leaves the
// registry.
func (r *CodeRepo) Exists(ctx context.Context, code string) (bool, error) {
	code = NormalizeCode(code)
	if code == "" {
		return false, nil
	}
	v, ok, err := r.store.Get(ctx, codeKeyPrefix+code)
	if err != nil {
		return false, err
	}
	return ok && v != "", nil
}

// Lookup returns the stored record for code, or ErrCodeNotFound.
func (r *CodeRepo) Lookup(ctx context.Context, code string) (*model.AccessCode, error) {
	code = NormalizeCode(code)
	v, ok, err := r.store.Get(ctx, codeKeyPrefix+code)
	if err != nil {
		return nil, err
	}
	if !ok || v == "" {
		return nil, ErrCodeNotFound
	}
	var rec model.AccessCode
	if err := json.Unmarshal([]byte(v), &rec); err != nil {
		return nil, fmt.Errorf("decode access code %s: %w", code, err)
	}
	return &rec, nil
}
