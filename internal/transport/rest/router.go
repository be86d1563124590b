// Package rest exposes the booking, consultation and party operations over
// HTTP with gin.
package rest

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type Options struct {
	CORSOrigins   []string
	RatePerSecond float64
	RateBurst     int
}

type Services struct {
	Bookings      BookingService
	Consultations ConsultationService
	Parties       PartyService
}

func NewRouter(svcs Services, opts Options, log *slog.Logger) *gin.Engine {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "http"))

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := gin.New()
	r.Use(recoverer(log), requestLogger(log))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type", CallerHeader},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: len(origins) != 1 || origins[0] != "*",
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/healthz", func(c *gin.Context) {
		respond(c, http.StatusOK, "ok", nil)
	})

	h := &handlers{
		bookings:      svcs.Bookings,
		consultations: svcs.Consultations,
		parties:       svcs.Parties,
		log:           log,
	}

	api := r.Group("/api", rateLimit(opts.RatePerSecond, opts.RateBurst, log), requireCaller())
	{
		api.POST("/parties", h.register)
		api.GET("/parties/me", h.me)

		api.POST("/bookings", h.createBooking)
		api.GET("/bookings", h.listBookings)
		api.PUT("/bookings/cancel/:bookingId", h.cancelBooking)
		api.PUT("/bookings/complete/:bookingId", h.completeBooking)

		api.POST("/consultations", h.createRecord)
		api.GET("/consultations/booking/:bookingId", h.recordForBooking)
		api.GET("/consultations/history", h.history)
	}

	return r
}
