// Package main library service API.
//
// @title           Library Service API
// @version         1.0
// @description     Library backend (catalog, holds, borrow tickets, notifications).
// @BasePath        /
// @schemes         http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description  Use:  Bearer <JWT>
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/longphan04/library-service-BE/app/echoServer"
	authctrl "github.com/longphan04/library-service-BE/app/echoServer/controller/auth"
	bookctrl "github.com/longphan04/library-service-BE/app/echoServer/controller/book"
	copyctrl "github.com/longphan04/library-service-BE/app/echoServer/controller/copy"
	holdctrl "github.com/longphan04/library-service-BE/app/echoServer/controller/hold"
	itemctrl "github.com/longphan04/library-service-BE/app/echoServer/controller/item"
	notifctrl "github.com/longphan04/library-service-BE/app/echoServer/controller/notification"
	ticketctrl "github.com/longphan04/library-service-BE/app/echoServer/controller/ticket"
	"github.com/longphan04/library-service-BE/app/echoServer/validation"
	"github.com/longphan04/library-service-BE/config"
	"github.com/longphan04/library-service-BE/cron"
	bookrepo "github.com/longphan04/library-service-BE/repository/book"
	copyrepo "github.com/longphan04/library-service-BE/repository/copy"
	holdrepo "github.com/longphan04/library-service-BE/repository/hold"
	itemrepo "github.com/longphan04/library-service-BE/repository/item"
	notifrepo "github.com/longphan04/library-service-BE/repository/notification"
	ticketrepo "github.com/longphan04/library-service-BE/repository/ticket"
	userrepo "github.com/longphan04/library-service-BE/repository/user"
	authsvc "github.com/longphan04/library-service-BE/service/auth"
	booksvc "github.com/longphan04/library-service-BE/service/book"
	holdsvc "github.com/longphan04/library-service-BE/service/hold"
	"github.com/longphan04/library-service-BE/service/inventory"
	itemsvc "github.com/longphan04/library-service-BE/service/item"
	notifsvc "github.com/longphan04/library-service-BE/service/notification"
	ticketsvc "github.com/longphan04/library-service-BE/service/ticket"
	"github.com/longphan04/library-service-BE/util/database"
)

func main() {

	cfg := config.Load()
	ctx := context.Background()

	// logger
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	// repos
	ur := userrepo.New(db)
	br := bookrepo.New(db)
	cr := copyrepo.New(db)
	hr := holdrepo.New(db)
	tr := ticketrepo.New(db)
	ir := itemrepo.New(db)
	nr := notifrepo.New(db)

	// services
	as := authsvc.New(ur, cfg.JWTSecret)
	inv := inventory.New(cr)
	bs := booksvc.New(br, inv)
	hs := holdsvc.New(hr, cr, br)
	is := itemsvc.New(ir, tr, cr)
	ns := notifsvc.New(nr, ur, log)
	ts := ticketsvc.New(tr, ir, hr, cr, is, ns)

	// controllers
	v := validator.New()
	authC := &authctrl.Controller{Svc: as, V: v, Log: log}
	bookC := &bookctrl.Controller{Svc: bs, Inv: inv, V: v, Log: log}
	copyC := &copyctrl.Controller{Svc: inv, V: v, Log: log}
	holdC := &holdctrl.Controller{Svc: hs, V: v, Log: log}
	ticketC := &ticketctrl.Controller{Svc: ts, V: v, Log: log}
	itemC := &itemctrl.Controller{Svc: is, V: v, Log: log}
	notifC := &notifctrl.Controller{Svc: ns, V: v, Log: log}

	// sweepers
	sched := cron.NewScheduler(log, cfg.SweepInterval)
	cron.NewSweepers(hs, tr, is, ns, log).Register(sched)
	sched.Start(ctx)
	defer sched.Stop()

	// echo
	e := echo.New()
	e.JSONSerializer = echoServer.JSONSerializer{}
	echoServer.RegisterMiddlewares(e)
	e.Validator = validation.New()

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]any{
			"status":  "ok",
			"message": "Service is healthy and connected",
		})
	})

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	echoServer.Register(e, echoServer.C{
		Auth:         authC,
		Book:         bookC,
		Copy:         copyC,
		Hold:         holdC,
		Ticket:       ticketC,
		Item:         itemC,
		Notification: notifC,

		JWTSecret: cfg.JWTSecret,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Port
	}

	log.Info("starting server", "port", port, "env", cfg.Env)

	e.Logger.Fatal(e.Start(":" + port))
}
