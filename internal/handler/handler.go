package handler

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/config"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/metrics"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/mq"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/repository"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/runner"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/scheduler"
)

const evaluatorCacheSize = 1024

type Handler struct {
	validate    *validator.Validate
	config      *config.Config
	repository  *repository.Repository
	translator  ut.Translator
	publisher   *mq.Publisher
	redisClient *redis.Client
	catalog     *domain.Catalog
	evaluator   *scheduler.Evaluator
	runner      *runner.Runner
	metrics     *metrics.Metrics

	Mux *chi.Mux
}

func NewHandler(cfg *config.Config, repo *repository.Repository, catalog *domain.Catalog, ch *amqp.Channel, rdb *redis.Client, m *metrics.Metrics) (*Handler, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	zh := zh.New()
	uni := ut.New(zh, zh)
	trans, _ := uni.GetTranslator("zh")
	if err := zh_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	// 评估接口共用一个 Evaluator，lru 缓存本身是并发安全的
	evaluator, err := scheduler.NewEvaluator(catalog, evaluatorCacheSize)
	if err != nil {
		return nil, err
	}

	return &Handler{
		validate:    validate,
		config:      cfg,
		repository:  repo,
		translator:  trans,
		publisher:   mq.NewPublisher(ch, time.Duration(cfg.RabbitMQ.PublishTimeout)*time.Second),
		redisClient: rdb,
		catalog:     catalog,
		evaluator:   evaluator,
		runner:      runner.New(cfg, repo, catalog, m),
		metrics:     m,

		Mux: chi.NewRouter(),
	}, nil
}

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(h.logger)
	h.Mux.Use(h.recoverer)

	// 认证相关
	h.Mux.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
	})

	if h.metrics != nil {
		h.Mux.Handle("/metrics", h.metrics.Handler())
	}

	operatorOnly := h.RequiredRole(domain.RoleOperator)

	// 以下 API 必须要在登录后才允许调用
	h.Mux.Group(func(r chi.Router) {
		r.Use(h.auth)

		r.Get("/catalog", h.GetCatalog)
		r.Post("/schedules/evaluate", h.EvaluateSchedule)

		r.Route("/scheduling-runs", func(r chi.Router) {
			r.Get("/", h.GetAllSchedulingRuns)
			r.With(operatorOnly, h.myInfo).Post("/", h.CreateSchedulingRun)
			r.With(operatorOnly, h.myInfo).Post("/generate", h.GenerateSchedulingRun)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.schedulingRun)
				r.Get("/", h.GetSchedulingRun)
				r.With(operatorOnly).Delete("/", h.DeleteSchedulingRun)
				r.Get("/history", h.GetSchedulingRunHistory)
				r.Get("/export", h.ExportSchedulingRun)
			})
		})
	})
}
