package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smarthealth/medquery/config"
	"github.com/smarthealth/medquery/pkg/models"
)

func testAuthConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{
			Secret:   "test-secret",
			Required: true,
		},
	}
}

func identityRouter(cfg *config.Config, identityOut **models.Identity) *chi.Mux {
	router := chi.NewRouter()
	router.Use(JWTVerifier(cfg))
	router.Use(jwtauth.Authenticator)
	router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		identity, err := IdentityFromRequest(r, cfg.Auth.Required)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		*identityOut = identity
		w.WriteHeader(http.StatusOK)
	})
	return router
}

func TestGenerateJWTRoundTrip(t *testing.T) {
	cfg := testAuthConfig()
	var identity *models.Identity
	router := identityRouter(cfg, &identity)

	token := GenerateJWT(cfg, &models.Identity{
		UserID:     "user-9",
		Role:       models.RolePatient,
		PatientIDs: []string{"patient-1", "patient-2"},
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code)
	require.NotNil(t, identity)
	assert.Equal(t, "user-9", identity.UserID)
	assert.Equal(t, models.RolePatient, identity.Role)
	assert.Equal(t, []string{"patient-1", "patient-2"}, identity.PatientIDs)
}

func TestJWTVerifier(t *testing.T) {
	cfg := testAuthConfig()
	var identity *models.Identity
	router := identityRouter(cfg, &identity)

	t.Run("missing JWT token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		res := httptest.NewRecorder()

		router.ServeHTTP(res, req)

		require.Equal(t, http.StatusUnauthorized, res.Code)
	})

	t.Run("invalid JWT token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer invalid-token")
		res := httptest.NewRecorder()

		router.ServeHTTP(res, req)

		require.Equal(t, http.StatusUnauthorized, res.Code)
	})
}

func TestIdentityFromRequest_AnonymousWhenAuthOptional(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	identity, err := IdentityFromRequest(req, false)

	require.NoError(t, err)
	assert.Equal(t, "anonymous", identity.UserID)
	assert.Equal(t, models.RoleClinician, identity.Role)
}
