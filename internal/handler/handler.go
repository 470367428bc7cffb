package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/talentdesk/employer-access/backend/internal/account"
	"github.com/talentdesk/employer-access/backend/internal/config"
	"github.com/talentdesk/employer-access/backend/internal/mailer"
	"github.com/talentdesk/employer-access/backend/internal/otp"
	"github.com/unrolled/secure"
)

type Handler struct {
	validate   *validator.Validate
	config     *config.Config
	accounts   *account.Service
	translator ut.Translator
	mailer     mailer.Publisher
	otp        *otp.Store
	secure     *secure.Secure

	Mux *chi.Mux
}

func NewHandler(cfg *config.Config, accounts *account.Service, publisher mailer.Publisher, otpStore *otp.Store) (*Handler, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	en := en.New()
	uni := ut.New(en, en)
	trans, _ := uni.GetTranslator("en")
	if err := en_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	return &Handler{
		validate:   validate,
		config:     cfg,
		accounts:   accounts,
		translator: trans,
		mailer:     publisher,
		otp:        otpStore,
		secure: secure.New(secure.Options{
			FrameDeny:             true,
			ContentTypeNosniff:    true,
			BrowserXssFilter:      true,
			ReferrerPolicy:        "strict-origin-when-cross-origin",
			ContentSecurityPolicy: "default-src 'none'",
			SSLRedirect:           cfg.IsProduction(),
			SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
			IsDevelopment:         !cfg.IsProduction(),
		}),

		Mux: chi.NewRouter(),
	}, nil
}

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(h.logger)
	h.Mux.Use(h.recoverer)
	h.Mux.Use(h.secureHeaders)

	h.Mux.Handle("/metrics", promhttp.Handler())

	// 认证相关，按 IP 限流
	h.Mux.Route("/auth", func(r chi.Router) {
		r.Use(httprate.Limit(
			h.config.RateLimit.AuthRequestsPerMinute,
			time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				h.errorResponse(w, r, http.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
			}),
		))
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
		r.Route("/reset-password", func(r chi.Router) {
			r.Post("/require", h.RequireResetPassword)
			r.Post("/confirm", h.ConfirmResetPassword)
		})
	})

	// 以下 API 必须要在登录后才允许调用，调用者的权限每次从数据库读取
	h.Mux.Group(func(r chi.Router) {
		r.Use(h.auth)
		r.Use(h.myInfo)
		r.Use(h.preventInactive)

		r.Route("/my-info", func(r chi.Router) {
			r.Get("/", h.GetMyInfo)
			r.Patch("/password", h.UpdateMyPassword)
			r.Route("/update-email", func(r chi.Router) {
				r.Post("/require", h.RequireUpdateEmail)
				r.Post("/confirm", h.ConfirmUpdateEmail)
			})
		})

		r.Get("/roles", h.GetRoles)
		r.Get("/permissions", h.GetPermissions)

		r.Route("/accounts", func(r chi.Router) {
			r.Post("/", h.CreateAccount)
			r.Get("/", h.GetAllAccounts)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.accountID)
				r.Get("/", h.GetAccount)
				r.Patch("/", h.UpdateAccount)
				r.Delete("/", h.DeleteAccount)
				r.Put("/permissions", h.UpdateAccountPermissions)
				r.Post("/reset-password", h.ResetAccountPassword)
			})
		})
	})
}
