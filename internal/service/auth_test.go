package service_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"cognito.app/sentinel/internal/model"
	"cognito.app/sentinel/internal/service"
	"cognito.app/sentinel/internal/store"
)

var _ = Describe("AuthService", func() {
	var (
		ctx      context.Context
		users    *mockUserStore
		sessions *mockSessionStore
		identity *mockIdentity
		tokens   *service.TokenIssuer
		svc      service.AuthService

		savedUser    *model.User
		savedSession *model.Session
	)

	BeforeEach(func() {
		ctx = context.Background()
		savedUser, savedSession = nil, nil

		users = &mockUserStore{
			upsertFn: func(_ context.Context, u *model.User) error {
				savedUser = u
				return nil
			},
			getByIDFn: func(_ context.Context, id int64) (*model.User, error) {
				if savedUser != nil && savedUser.ID == id {
					return savedUser, nil
				}
				return nil, store.ErrNotFound
			},
		}
		sessions = &mockSessionStore{
			createFn: func(_ context.Context, s *model.Session) error {
				savedSession = s
				return nil
			},
			getValidFn: func(_ context.Context, id int64) (*model.Session, error) {
				if savedSession != nil && savedSession.ID == id {
					return savedSession, nil
				}
				return nil, store.ErrNotFound
			},
		}
		identity = &mockIdentity{
			signUpFn: func(_ context.Context, email, _, _ string) (*service.Identity, error) {
				return &service.Identity{ID: "user_01", Email: email, FirstName: "Ada", LastName: "Lovelace"}, nil
			},
			authenticateFn: func(_ context.Context, email, password string) (*service.Identity, error) {
				if password != "correct horse" {
					return nil, errors.New("invalid credentials")
				}
				return &service.Identity{ID: "user_01", Email: email}, nil
			},
		}
		tokens = service.NewTokenIssuer("test-secret", "sentinel", time.Hour)
		svc = service.NewAuthService(users, sessions, identity, tokens)
	})

	Describe("SignUp", func() {
		It("creates the user, a session and a token bound to it", func() {
			result, err := svc.SignUp(ctx, " ada@example.com ", "correct horse", "Ada Lovelace")
			Expect(err).NotTo(HaveOccurred())

			Expect(result.User.Email).To(Equal("ada@example.com"))
			Expect(result.User.Name).To(Equal("Ada Lovelace"))
			Expect(*result.User.IdentityID).To(Equal("user_01"))
			Expect(savedSession.UserID).To(Equal(result.User.ID))
			Expect(result.ExpiresAt).To(Equal(savedSession.ExpiresAt))

			claims, err := tokens.Verify(result.Token)
			Expect(err).NotTo(HaveOccurred())
			Expect(claims.UserID).To(Equal(result.User.ID))
			sessionID, err := claims.SessionID()
			Expect(err).NotTo(HaveOccurred())
			Expect(sessionID).To(Equal(savedSession.ID))
		})

		It("rejects a missing password before calling the identity provider", func() {
			identity.signUpFn = func(context.Context, string, string, string) (*service.Identity, error) {
				Fail("identity provider should not be called")
				return nil, nil
			}
			_, err := svc.SignUp(ctx, "ada@example.com", "", "")
			Expect(err).To(MatchError(service.ErrInvalidInput))
		})

		It("propagates store failures", func() {
			users.upsertFn = func(context.Context, *model.User) error {
				return errors.New("database connection failed")
			}
			_, err := svc.SignUp(ctx, "ada@example.com", "pw", "")
			Expect(err).To(MatchError(ContainSubstring("database connection failed")))
		})
	})

	Describe("Login", func() {
		It("falls back to the email as display name", func() {
			result, err := svc.Login(ctx, "ada@example.com", "correct horse")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.User.Name).To(Equal("ada@example.com"))
		})

		It("hides the provider error behind invalid credentials", func() {
			_, err := svc.Login(ctx, "ada@example.com", "wrong")
			Expect(err).To(Equal(service.ErrInvalidCredentials))
			Expect(savedSession).To(BeNil())
		})
	})

	Describe("Authenticate", func() {
		It("resolves the user behind a valid token", func() {
			result, err := svc.Login(ctx, "ada@example.com", "correct horse")
			Expect(err).NotTo(HaveOccurred())

			user, claims, err := svc.Authenticate(ctx, result.Token)
			Expect(err).NotTo(HaveOccurred())
			Expect(user.ID).To(Equal(result.User.ID))
			Expect(claims.UserID).To(Equal(result.User.ID))
		})

		It("rejects a token whose session was revoked", func() {
			result, err := svc.Login(ctx, "ada@example.com", "correct horse")
			Expect(err).NotTo(HaveOccurred())
			savedSession = nil

			_, _, err = svc.Authenticate(ctx, result.Token)
			Expect(err).To(MatchError(service.ErrSessionExpired))
		})

		It("rejects tokens signed with another secret", func() {
			other := service.NewTokenIssuer("other-secret", "sentinel", time.Hour)
			token, err := other.Issue(1, 2, time.Now().Add(time.Hour))
			Expect(err).NotTo(HaveOccurred())

			_, _, err = svc.Authenticate(ctx, token)
			Expect(err).To(MatchError(service.ErrInvalidToken))
		})

		It("rejects expired tokens", func() {
			token, err := tokens.Issue(1, 2, time.Now().Add(-time.Minute))
			Expect(err).NotTo(HaveOccurred())

			_, _, err = svc.Authenticate(ctx, token)
			Expect(err).To(MatchError(service.ErrInvalidToken))
		})

		It("rejects garbage", func() {
			_, _, err := svc.Authenticate(ctx, "not-a-jwt")
			Expect(err).To(MatchError(service.ErrInvalidToken))
		})
	})

	It("deletes the session on logout", func() {
		var deleted int64
		sessions.deleteFn = func(_ context.Context, id int64) error {
			deleted = id
			return nil
		}
		Expect(svc.Logout(ctx, 42)).To(Succeed())
		Expect(deleted).To(Equal(int64(42)))
	})
})
