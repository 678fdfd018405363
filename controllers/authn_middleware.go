package controllers

import (
	"context"
	"errors"
	"github.com/adamlounds/diacates-go/middleware"
	"github.com/adamlounds/diacates-go/models"
	"github.com/go-chi/render"
	slogctx "github.com/veqryn/slog-context"
	"log/slog"
	"net/http"
)

type AuthnMiddleware struct {
	*models.AuthService
	Sessions *middleware.SessionManager
}

// AuthnFromToken resolves a session token to its subject. Missing, invalid
// and expired tokens, and tokens for deleted subjects, give the anonymous
// subject.
func (a AuthnMiddleware) AuthnFromToken(ctx context.Context, token string) *models.Authn {
	log := slogctx.FromCtx(ctx)
	if token == "" {
		return models.AnonymousAuthn()
	}
	claims, err := a.Sessions.Validate(token)
	if err != nil {
		log.Debug("ignoring session token", slog.Any("error", err))
		return models.AnonymousAuthn()
	}
	as := a.SubjectByID(ctx, claims.Subject)
	if as.IsAnonymous() {
		return models.AnonymousAuthn()
	}
	authn := &models.Authn{AuthSubject: as, TokenID: claims.ID}
	if claims.ExpiresAt != nil {
		authn.ExpiresTime = claims.ExpiresAt.Time
	}
	return authn
}

func (a AuthnMiddleware) SetAuthentication(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		log := slogctx.FromCtx(ctx)

		token, err := middleware.TokenFromRequest(r)
		if err != nil && !errors.Is(err, middleware.ErrMissingSession) {
			log.Debug("cannot read session token", slog.Any("error", err))
		}
		authn := a.AuthnFromToken(ctx, token)

		log.Debug("SetAuthentication", slog.Any("authn", authn))
		ctx = middleware.WithAuthn(ctx, authn)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Authz guards API routes: 401 when signed out, 403 when the subject's
// roles do not grant requiredPermission.
func (a AuthnMiddleware) Authz(requiredPermission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogctx.FromCtx(ctx)
			authn := middleware.GetAuthn(ctx)

			if authn.Status() != models.SessionAuthenticated {
				log.Debug("authz: not signed in", slog.String("requiredPerm", requiredPermission))
				_ = render.Render(w, r, ErrUnauthorized)
				return
			}
			if !a.IsPermitted(ctx, authn, requiredPermission) {
				log.Info("authz: not permitted",
					slog.String("requiredPerm", requiredPermission),
					slog.Any("authn", authn),
				)
				_ = render.Render(w, r, ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSignIn sends signed-out page visitors to the home page, which
// offers the sign-in link.
func (a AuthnMiddleware) RequireSignIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if middleware.GetAuthn(r.Context()).Status() != models.SessionAuthenticated {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}
