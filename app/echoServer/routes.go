package echoServer

import (
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	authctrl "github.com/longphan04/library-service-BE/app/echoServer/controller/auth"
	bookctrl "github.com/longphan04/library-service-BE/app/echoServer/controller/book"
	copyctrl "github.com/longphan04/library-service-BE/app/echoServer/controller/copy"
	holdctrl "github.com/longphan04/library-service-BE/app/echoServer/controller/hold"
	itemctrl "github.com/longphan04/library-service-BE/app/echoServer/controller/item"
	notifctrl "github.com/longphan04/library-service-BE/app/echoServer/controller/notification"
	ticketctrl "github.com/longphan04/library-service-BE/app/echoServer/controller/ticket"
	"github.com/longphan04/library-service-BE/app/echoServer/jwtx"
)

type C struct {
	Auth         *authctrl.Controller
	Book         *bookctrl.Controller
	Copy         *copyctrl.Controller
	Hold         *holdctrl.Controller
	Ticket       *ticketctrl.Controller
	Item         *itemctrl.Controller
	Notification *notifctrl.Controller
	JWTSecret    string
}

func Register(e *echo.Echo, c C) {
	// Public
	pub := e.Group("/v1")
	pub.POST("/users/register", c.Auth.Register)
	pub.POST("/users/login", c.Auth.Login)

	// Auth
	auth := e.Group("/v1")
	auth.Use(echojwt.WithConfig(echojwt.Config{
		SigningKey: []byte(c.JWTSecret),

		NewClaimsFunc: func(c echo.Context) jwt.Claims { return jwt.MapClaims{} },
		TokenLookup:   "header:Authorization",
	}))
	// user_id + role extraction
	auth.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			uid, err := jwtx.UserIDFromContext(ctx)
			if err != nil {
				return ctx.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
			}
			role, err := jwtx.RoleFromContext(ctx)
			if err != nil {
				return ctx.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
			}
			ctx.Set("user_id", uid)
			ctx.Set("role", role)
			return next(ctx)
		}
	})

	// Catalog
	auth.GET("/books", c.Book.List)
	auth.GET("/books/:id", c.Book.Detail)

	// Holds
	auth.POST("/holds", c.Hold.Create)
	auth.GET("/holds/my", c.Hold.MyHolds)
	auth.POST("/holds/release", c.Hold.Release)

	// Tickets (member)
	auth.POST("/tickets", c.Ticket.Create)
	auth.GET("/tickets/my", c.Ticket.MyTickets)
	auth.PATCH("/tickets/my/:id", c.Ticket.MemberUpdate)
	auth.GET("/tickets/:id", c.Ticket.Detail)

	// Notifications
	auth.GET("/notifications", c.Notification.ListMine)
	auth.POST("/notifications/read", c.Notification.MarkRead)

	// Staff
	staff := auth.Group("", RequireStaff())
	staff.POST("/books", c.Book.Create)
	staff.POST("/books/:id/copies", c.Book.AddCopies)
	staff.GET("/books/:id/copies", c.Copy.ListByBook)
	staff.POST("/copies", c.Copy.Create)
	staff.PATCH("/copies/:id/status", c.Copy.SetStatus)
	staff.DELETE("/copies/:id", c.Copy.Delete)

	staff.GET("/tickets", c.Ticket.List)
	staff.PATCH("/tickets/:id/status", c.Ticket.StaffUpdate)
	staff.GET("/tickets/:id/items", c.Item.ListByTicket)
	staff.PATCH("/items/:id/status", c.Item.UpdateStatus)
}
