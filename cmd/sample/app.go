package main

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/bjaus/oapi"
	"github.com/bjaus/oapi/chihost"
	"github.com/bjaus/oapi/jwtauth"
)

type app struct {
	router *oapi.Router
	store  *itemStore
	tokens *jwtauth.Provider
}

func newApp(cfg config, logger *zap.Logger, reg *prometheus.Registry) *app {
	mux := chi.NewRouter()
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	a := &app{
		store: newItemStore(),
		tokens: jwtauth.New([]byte(cfg.JWTSecret),
			jwtauth.WithIssuer(cfg.JWTIssuer),
			jwtauth.WithTTL(time.Hour),
		),
	}

	r := oapi.New(
		oapi.WithTitle("Catalog API"),
		oapi.WithVersion("1.0.0"),
		oapi.WithAPIDescription("A small item catalog."),
		oapi.WithTagDescriptions(map[string]string{
			"items": "Catalog items",
			"auth":  "Tokens and the current principal",
			"ops":   "Operational endpoints",
		}),
		oapi.WithHost(chihost.New(mux)),
		oapi.WithLogger(logger),
		oapi.WithMetrics(reg),
	)
	r.Use(oapi.RequestID(), oapi.Logger(logger), oapi.Recovery(logger), oapi.BodyLimit(cfg.MaxBody))
	if cfg.Timeout > 0 {
		r.Use(oapi.Timeout(cfg.Timeout))
	}

	r.ServeSpec("/openapi.json")
	r.ServeSpecYAML("/openapi.yaml")
	r.ServeDocs("/docs")

	v1 := r.Group("/v1")
	a.routes(v1)

	a.router = r
	return a
}

func (a *app) routes(v1 *oapi.Group) {
	oapi.Get(v1, "/health", a.health,
		oapi.WithSummary("Health check"),
		oapi.WithTags("ops"),
	)

	items := v1.Group("/items", oapi.WithGroupTags("items"))
	oapi.Get(items, "", a.listItems,
		oapi.WithSummary("List items"),
		oapi.WithExample(ItemList{Items: []Item{exampleItem}, Total: 1}),
	)
	oapi.Get(items, "/{id}", a.getItem,
		oapi.WithSummary("Get item"),
		oapi.WithErrors(http.StatusNotFound),
		oapi.WithExample(exampleItem),
	)

	writers := oapi.Authenticated[*jwtauth.Claims](items, a.tokens)
	oapi.AuthPost(writers, "", a.createItem,
		oapi.WithStatus(http.StatusCreated),
		oapi.WithSummary("Create item"),
		oapi.WithRequestExample(NewItem{Name: "Widget", Price: 9.5, Tags: []string{"tools"}}),
		oapi.WithExample(exampleItem),
		oapi.WithBodyLimit(64<<10),
	)
	oapi.AuthPut(writers, "/{id}", a.updateItem,
		oapi.WithSummary("Replace item"),
		oapi.WithErrors(http.StatusNotFound),
		oapi.WithBodyLimit(64<<10),
	)

	admins := oapi.Authenticated[*jwtauth.Claims](items, a.tokens.RequireRoles("admin"))
	oapi.AuthDelete(admins, "/{id}", a.deleteItem,
		oapi.WithSummary("Delete item"),
		oapi.WithErrors(http.StatusNotFound),
		oapi.WithEagerAuth(),
	)

	auth := v1.Group("", oapi.WithGroupTags("auth"))
	oapi.Post(auth, "/tokens", a.issueToken,
		oapi.WithStatus(http.StatusCreated),
		oapi.WithSummary("Issue a development token"),
		oapi.WithRateLimit(oapi.RateLimitConfig{Rate: 1, Burst: 5}),
		oapi.WithExtension("audience", "development"),
	)
	oapi.AuthGet(oapi.Authenticated[*jwtauth.Claims](auth, a.tokens), "/me", a.me,
		oapi.WithSummary("Current principal"),
	)
}

var exampleItem = Item{
	ID:        "1",
	Name:      "Widget",
	Price:     9.5,
	Tags:      []string{"tools"},
	Owner:     "alice",
	CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
}

// Health is the health check response.
type Health struct {
	Status string    `json:"status"`
	Time   time.Time `json:"time"`
}

// ListParams filters and pages the item list.
type ListParams struct {
	Tag    string `query:"tag" doc:"Only items with this tag"`
	Limit  int    `query:"limit" doc:"Max results" default:"20" minimum:"1" maximum:"100"`
	Offset int    `query:"offset" doc:"Pagination offset" default:"0" minimum:"0"`
}

// ItemList is a page of items.
type ItemList struct {
	Items []Item `json:"items"`
	Total int    `json:"total"`
}

// ItemParams addresses one item.
type ItemParams struct {
	ID string `path:"id" doc:"Item ID"`
}

// NewItem is the body of create and replace.
type NewItem struct {
	Name  string   `json:"name" required:"true" minLength:"1" maxLength:"100" doc:"Display name"`
	Price float64  `json:"price" minimum:"0" doc:"Unit price"`
	Tags  []string `json:"tags,omitempty" maxItems:"10"`
}

// Validate rejects names that are only whitespace.
func (n *NewItem) Validate() error {
	if strings.TrimSpace(n.Name) == "" {
		return &oapi.ValidationError{Errors: []oapi.FieldError{{Field: "body.name", Message: "must not be blank"}}}
	}
	return nil
}

// TokenRequest asks for a development token.
type TokenRequest struct {
	Subject string   `json:"subject" required:"true" doc:"Token subject"`
	Roles   []string `json:"roles,omitempty" maxItems:"5" doc:"Granted roles"`
}

// Token is an issued bearer token.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Profile describes the authenticated principal.
type Profile struct {
	Subject string   `json:"subject"`
	Roles   []string `json:"roles"`
}

func (a *app) health(c *oapi.ResponseContext[Health], _ *oapi.Void) error {
	c.Respond(&Health{Status: "ok", Time: time.Now().UTC()})
	return nil
}

func (a *app) listItems(c *oapi.ResponseContext[ItemList], p *ListParams) error {
	items, total := a.store.list(p.Tag, p.Offset, p.Limit)
	c.Respond(&ItemList{Items: items, Total: total})
	return nil
}

func (a *app) getItem(c *oapi.ResponseContext[Item], p *ItemParams) error {
	it, ok := a.store.get(p.ID)
	if !ok {
		return oapi.Errorf(http.StatusNotFound, "item %s not found", p.ID)
	}
	c.Respond(it)
	return nil
}

func (a *app) createItem(c *oapi.AuthContext[*jwtauth.Claims, Item], _ *oapi.Void, in *NewItem) error {
	claims, err := c.Principal()
	if err != nil {
		return err
	}
	it := a.store.create(*in, claims.Subject)
	c.Header().Set("Location", "/v1/items/"+it.ID)
	c.Respond(it)
	return nil
}

func (a *app) updateItem(c *oapi.AuthContext[*jwtauth.Claims, Item], p *ItemParams, in *NewItem) error {
	if _, err := c.Principal(); err != nil {
		return err
	}
	it, ok := a.store.update(p.ID, *in)
	if !ok {
		return oapi.Errorf(http.StatusNotFound, "item %s not found", p.ID)
	}
	c.Respond(it)
	return nil
}

func (a *app) deleteItem(_ *oapi.AuthContext[*jwtauth.Claims, oapi.Void], p *ItemParams) error {
	if !a.store.delete(p.ID) {
		return oapi.Errorf(http.StatusNotFound, "item %s not found", p.ID)
	}
	return nil
}

func (a *app) issueToken(c *oapi.ResponseContext[Token], _ *oapi.Void, in *TokenRequest) error {
	token, err := a.tokens.Issue(in.Subject, in.Roles...)
	if err != nil {
		return err
	}
	c.Respond(&Token{AccessToken: token, TokenType: "Bearer"})
	return nil
}

func (a *app) me(c *oapi.AuthContext[*jwtauth.Claims, Profile], _ *oapi.Void) error {
	claims, err := c.Principal()
	if err != nil {
		return err
	}
	c.Respond(&Profile{Subject: claims.Subject, Roles: claims.Roles})
	return nil
}
