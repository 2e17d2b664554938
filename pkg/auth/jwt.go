package auth

import (
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/jwtauth/v5"

	"github.com/smarthealth/medquery/config"
	"github.com/smarthealth/medquery/pkg/models"
)

const JwtAlg = "HS256"

const (
	claimUserID     = "user_id"
	claimRole       = "role"
	claimPatientIDs = "patient_ids"
)

// GenerateJWT generates a JWT token carrying the given identity.
// Requires that MEDQUERY_AUTH_SECRET is set in the environment.
func GenerateJWT(cfg *config.Config, identity *models.Identity) string {
	tokenAuth := newTokenAuth(cfg)

	claims := map[string]interface{}{
		claimUserID: identity.UserID,
		claimRole:   string(identity.Role),
	}
	if len(identity.PatientIDs) > 0 {
		claims[claimPatientIDs] = identity.PatientIDs
	}

	_, tokenString, err := tokenAuth.Encode(claims)
	if err != nil {
		log.Fatal("Error generating auth token: ", err)
	}

	return tokenString
}

func JWTVerifier(cfg *config.Config) func(http.Handler) http.Handler {
	return jwtauth.Verifier(newTokenAuth(cfg))
}

func newTokenAuth(cfg *config.Config) *jwtauth.JWTAuth {
	secret := []byte(cfg.Auth.Secret)
	if len(secret) == 0 {
		log.Fatal("Auth secret not set. Ensure MEDQUERY_AUTH_SECRET is set in your environment.")
	}
	return jwtauth.New(JwtAlg, secret, nil)
}

// IdentityFromRequest resolves the caller's identity from verified JWT
// claims. When auth is not required and no token is present, the caller is
// treated as a clinician.
func IdentityFromRequest(r *http.Request, authRequired bool) (*models.Identity, error) {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil || len(claims) == 0 {
		if authRequired {
			if err == nil {
				err = errors.New("token claims missing")
			}
			return nil, err
		}
		return &models.Identity{
			UserID: "anonymous",
			Role:   models.RoleClinician,
		}, nil
	}

	identity := &models.Identity{
		Role: models.RoleClinician,
	}
	if userID, ok := claims[claimUserID].(string); ok {
		identity.UserID = userID
	}
	if role, ok := claims[claimRole].(string); ok && role != "" {
		identity.Role = models.Role(role)
	}
	if rawIDs, ok := claims[claimPatientIDs].([]interface{}); ok {
		for _, rawID := range rawIDs {
			if id, ok := rawID.(string); ok {
				identity.PatientIDs = append(identity.PatientIDs, id)
			}
		}
	}

	return identity, nil
}
