package tokenpkg

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/go-petr/pet-ledger/pkg/randompkg"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

var tokenTypes = []string{TypeJWT, TypePaseto}

func newMaker(t *testing.T, tokenType string) Maker {
	t.Helper()

	key := randompkg.String(32)

	maker, err := New(tokenType, key)
	if err != nil {
		t.Fatalf("New(%v, %v) returned error: %v", tokenType, key, err)
	}

	return maker
}

func TestNew(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		tokenType string
		key       string
		wantErr   bool
		wantType  string
	}{
		{tokenType: TypeJWT, key: randompkg.String(32), wantType: TypeJWT},
		{tokenType: TypeJWT, key: randompkg.String(64), wantType: TypeJWT},
		{tokenType: TypeJWT, key: randompkg.String(31), wantErr: true},
		{tokenType: TypePaseto, key: randompkg.String(32), wantType: TypePaseto},
		{tokenType: TypePaseto, key: randompkg.String(64), wantErr: true},
		{tokenType: "", key: randompkg.String(32), wantType: TypePaseto},
	}

	for i := range testCases {
		tc := testCases[i]

		maker, err := New(tc.tokenType, tc.key)
		if tc.wantErr {
			if err == nil || maker != nil {
				t.Errorf("New(%q, key of %d) = %v, %v, want an invalid key size error",
					tc.tokenType, len(tc.key), maker, err)
			}

			continue
		}

		if err != nil {
			t.Fatalf("New(%q, key of %d) returned error: %v", tc.tokenType, len(tc.key), err)
		}

		if got := typeName(maker); got != tc.wantType {
			t.Errorf("New(%q) made a %v maker, want %v", tc.tokenType, got, tc.wantType)
		}
	}
}

func typeName(m Maker) string {
	switch m.(type) {
	case *JWTMaker:
		return TypeJWT
	case *PasetoMaker:
		return TypePaseto
	}

	return "unknown"
}

func TestMakers(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		ownerID  int64
		duration time.Duration
		verifier func(t *testing.T, tokenType string) Maker
		wantErr  error
	}{
		{
			name:     "OK",
			ownerID:  randompkg.OwnerID(),
			duration: time.Minute,
		},
		{
			name:     "MaxOwnerID",
			ownerID:  math.MaxInt64,
			duration: time.Minute,
		},
		{
			name:     "Expired",
			ownerID:  randompkg.OwnerID(),
			duration: -time.Minute,
			wantErr:  ErrExpiredToken,
		},
		{
			name:     "OtherKey",
			ownerID:  randompkg.OwnerID(),
			duration: time.Minute,
			verifier: func(t *testing.T, tokenType string) Maker {
				return newMaker(t, tokenType)
			},
			wantErr: ErrInvalidToken,
		},
		{
			name:     "OtherTokenType",
			ownerID:  randompkg.OwnerID(),
			duration: time.Minute,
			verifier: func(t *testing.T, tokenType string) Maker {
				if tokenType == TypeJWT {
					return newMaker(t, TypePaseto)
				}

				return newMaker(t, TypeJWT)
			},
			wantErr: ErrInvalidToken,
		},
	}

	for _, tokenType := range tokenTypes {
		for i := range testCases {
			tokenType, tc := tokenType, testCases[i]

			t.Run(tokenType+"/"+tc.name, func(t *testing.T) {
				t.Parallel()

				issuer := newMaker(t, tokenType)

				verifier := issuer
				if tc.verifier != nil {
					verifier = tc.verifier(t, tokenType)
				}

				token, issued, err := issuer.CreateToken(tc.ownerID, tc.duration)
				if err != nil {
					t.Fatalf("CreateToken(%v, %v) returned error: %v", tc.ownerID, tc.duration, err)
				}

				got, err := verifier.VerifyToken(token)
				if tc.wantErr != nil {
					if !errors.Is(err, tc.wantErr) {
						t.Errorf("VerifyToken() returned error %v, want %v", err, tc.wantErr)
					}

					return
				}

				if err != nil {
					t.Fatalf("VerifyToken() returned error: %v", err)
				}

				if got.OwnerID != tc.ownerID {
					t.Errorf("VerifyToken().OwnerID = %v, want %v", got.OwnerID, tc.ownerID)
				}

				want := &Payload{
					ID:        issued.ID,
					OwnerID:   tc.ownerID,
					IssuedAt:  time.Now(),
					ExpiredAt: time.Now().Add(tc.duration),
				}

				delta := cmpopts.EquateApproxTime(time.Minute)

				if diff := cmp.Diff(want, got, delta); diff != "" {
					t.Errorf("VerifyToken() returned unexpected diff (-want +got):\n%s", diff)
				}
			})
		}
	}
}

func TestMalformedToken(t *testing.T) {
	t.Parallel()

	for _, tokenType := range tokenTypes {
		maker := newMaker(t, tokenType)

		for _, token := range []string{"", "garbage", "a.b.c", "v2.local.garbage"} {
			if _, err := maker.VerifyToken(token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("%s VerifyToken(%q) returned error %v, want %v", tokenType, token, err, ErrInvalidToken)
			}
		}
	}
}

// The owner id travels as a JSON integer so ids above 2^53 keep every digit.
func TestJWTOwnerIDClaim(t *testing.T) {
	t.Parallel()

	maker := newMaker(t, TypeJWT)

	ownerID := int64(math.MaxInt64)

	token, _, err := maker.CreateToken(ownerID, time.Minute)
	if err != nil {
		t.Fatalf("CreateToken(%v) returned error: %v", ownerID, err)
	}

	parser := jwt.Parser{UseJSONNumber: true}
	claims := jwt.MapClaims{}

	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		t.Fatalf("ParseUnverified() returned error: %v", err)
	}

	raw, ok := claims["owner_id"].(json.Number)
	if !ok {
		t.Fatalf("owner_id claim = %#v, want a JSON number", claims["owner_id"])
	}

	got, err := raw.Int64()
	if err != nil {
		t.Fatalf("owner_id claim %v is not an integer: %v", raw, err)
	}

	if got != ownerID {
		t.Errorf("owner_id claim = %v, want %v", got, ownerID)
	}
}

func TestJWTRejectsUnsignedToken(t *testing.T) {
	t.Parallel()

	payload, err := NewPayload(randompkg.OwnerID(), time.Minute)
	if err != nil {
		t.Fatalf("NewPayload() returned error: %v", err)
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, payload).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("SignedString() returned error: %v", err)
	}

	if _, err := newMaker(t, TypeJWT).VerifyToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("VerifyToken(unsigned) returned error %v, want %v", err, ErrInvalidToken)
	}
}
