// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TechieKraft Contributors

//go:build integration

package integration

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/techiekraft/identity/internal/auth"
	"github.com/techiekraft/identity/internal/httpapi"
)

var _ = Describe("Authentication Service", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
		truncateAll(ctx)
	})

	registerInput := func(email string) auth.NewUser {
		return auth.NewUser{
			Email:     email,
			Password:  "p@ss123",
			FirstName: "A",
			LastName:  "B",
			Role:      "student",
		}
	}

	Describe("Registration", func() {
		It("creates a credential record and returns the public identity", func() {
			identity, err := env.Service.Register(ctx, registerInput("a@x.com"))
			Expect(err).NotTo(HaveOccurred())
			Expect(identity.ID).NotTo(BeZero())
			Expect(identity.Email).To(Equal("a@x.com"))
			Expect(identity.Role).To(Equal(auth.RoleStudent))

			user, err := env.Users.GetByEmail(ctx, "a@x.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(user.PasswordHash).NotTo(ContainSubstring("p@ss123"))
			Expect(user.PasswordHash).To(ContainSubstring("."))
		})

		It("rejects a duplicate email with exactly one surviving record", func() {
			_, err := env.Service.Register(ctx, registerInput("a@x.com"))
			Expect(err).NotTo(HaveOccurred())

			_, err = env.Service.Register(ctx, registerInput("a@x.com"))
			Expect(err).To(MatchError(auth.ErrDuplicateEmail))

			var count int
			Expect(env.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE email = $1`, "a@x.com").
				Scan(&count)).To(Succeed())
			Expect(count).To(Equal(1))
		})

		It("lets exactly one of two concurrent registrations win", func() {
			var wg sync.WaitGroup
			errs := make([]error, 2)
			for i := range errs {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					defer GinkgoRecover()
					_, errs[i] = env.Service.Register(ctx, registerInput("race@x.com"))
				}(i)
			}
			wg.Wait()

			winners := 0
			for _, err := range errs {
				if err == nil {
					winners++
				} else {
					Expect(err).To(MatchError(auth.ErrDuplicateEmail))
				}
			}
			Expect(winners).To(Equal(1))
		})
	})

	Describe("Login", func() {
		BeforeEach(func() {
			_, err := env.Service.Register(ctx, registerInput("a@x.com"))
			Expect(err).NotTo(HaveOccurred())
		})

		It("authenticates valid credentials", func() {
			identity, err := env.Service.Authenticate(ctx, "a@x.com", "p@ss123")
			Expect(err).NotTo(HaveOccurred())
			Expect(identity.Email).To(Equal("a@x.com"))
		})

		It("returns the same error for wrong password and unknown email", func() {
			_, wrongPassword := env.Service.Authenticate(ctx, "a@x.com", "nope")
			_, unknownEmail := env.Service.Authenticate(ctx, "nobody@x.com", "p@ss123")

			Expect(wrongPassword).To(MatchError(auth.ErrInvalidCredentials))
			Expect(unknownEmail).To(MatchError(auth.ErrInvalidCredentials))
			Expect(wrongPassword.Error()).To(Equal(unknownEmail.Error()))
		})
	})

	Describe("Session lifecycle", func() {
		var identity *auth.Identity

		BeforeEach(func() {
			var err error
			identity, err = env.Service.Register(ctx, registerInput("a@x.com"))
			Expect(err).NotTo(HaveOccurred())
		})

		It("round-trips a session through the store", func() {
			token, err := env.Service.StartSession(ctx, identity)
			Expect(err).NotTo(HaveOccurred())
			Expect(token).To(HaveLen(64))

			resolved, err := env.Service.ResolveSession(ctx, token)
			Expect(err).NotTo(HaveOccurred())
			Expect(resolved).NotTo(BeNil())
			Expect(*resolved).To(Equal(*identity))
		})

		It("resolves a never-issued token to none", func() {
			resolved, err := env.Service.ResolveSession(ctx, strings.Repeat("f", 64))
			Expect(err).NotTo(HaveOccurred())
			Expect(resolved).To(BeNil())
		})

		It("resolves to none after Destroy", func() {
			token, err := env.Service.StartSession(ctx, identity)
			Expect(err).NotTo(HaveOccurred())

			Expect(env.Service.DestroySession(ctx, token)).To(Succeed())

			resolved, err := env.Service.ResolveSession(ctx, token)
			Expect(err).NotTo(HaveOccurred())
			Expect(resolved).To(BeNil())

			// Destroy is idempotent.
			Expect(env.Service.DestroySession(ctx, token)).To(Succeed())
		})

		It("resolves an expired session to none while the row still exists", func() {
			token, err := env.Service.StartSession(ctx, identity)
			Expect(err).NotTo(HaveOccurred())

			tokenHash := auth.HashSessionToken(token)
			_, err = env.pool.Exec(ctx,
				`UPDATE web_sessions SET expires_at = NOW() - INTERVAL '1 minute' WHERE token_hash = $1`,
				tokenHash)
			Expect(err).NotTo(HaveOccurred())

			resolved, err := env.Service.ResolveSession(ctx, token)
			Expect(err).NotTo(HaveOccurred())
			Expect(resolved).To(BeNil())

			var count int
			Expect(env.pool.QueryRow(ctx,
				`SELECT COUNT(*) FROM web_sessions WHERE token_hash = $1`, tokenHash).
				Scan(&count)).To(Succeed())
			Expect(count).To(Equal(1), "lazy expiry leaves the row in place")
		})

		It("purges expired rows via DeleteExpired", func() {
			token, err := env.Service.StartSession(ctx, identity)
			Expect(err).NotTo(HaveOccurred())

			_, err = env.pool.Exec(ctx,
				`UPDATE web_sessions SET expires_at = NOW() - INTERVAL '1 minute' WHERE token_hash = $1`,
				auth.HashSessionToken(token))
			Expect(err).NotTo(HaveOccurred())

			count, err := env.Sessions.DeleteExpired(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(int64(1)))
		})

		It("drops an undecodable identity payload as not authenticated", func() {
			token, err := env.Service.StartSession(ctx, identity)
			Expect(err).NotTo(HaveOccurred())

			_, err = env.pool.Exec(ctx,
				`UPDATE web_sessions SET identity = '"garbled"'::jsonb WHERE token_hash = $1`,
				auth.HashSessionToken(token))
			Expect(err).NotTo(HaveOccurred())

			resolved, err := env.Service.ResolveSession(ctx, token)
			Expect(err).NotTo(HaveOccurred())
			Expect(resolved).To(BeNil())
		})
	})

	Describe("HTTP surface", func() {
		var (
			ts     *httptest.Server
			client *http.Client
		)

		BeforeEach(func() {
			srv, err := httpapi.NewServer(httpapi.Config{Addr: "127.0.0.1:0"}, env.Service, nil, nil)
			Expect(err).NotTo(HaveOccurred())
			ts = httptest.NewServer(srv.Router())
			DeferCleanup(ts.Close)

			jar, err := cookiejar.New(nil)
			Expect(err).NotTo(HaveOccurred())
			client = &http.Client{Jar: jar, Timeout: 10 * time.Second}
		})

		It("register sets a cookie and the session endpoint sees it", func() {
			resp, err := client.Post(ts.URL+"/api/auth/register", "application/json",
				strings.NewReader(`{"email":"a@x.com","password":"p@ss123","firstName":"A","lastName":"B","role":"student"}`))
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))
			Expect(resp.Cookies()).NotTo(BeEmpty())

			sessionResp, err := client.Get(ts.URL + "/api/auth/session")
			Expect(err).NotTo(HaveOccurred())
			defer sessionResp.Body.Close()
			Expect(sessionResp.StatusCode).To(Equal(http.StatusOK))
		})
	})
})
