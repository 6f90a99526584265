// Package oapi registers HTTP routes from typed handlers. One declaration
// yields the installed handler, the OpenAPI 3.1 operation, and typed access
// to the bound request inside the handler.
//
// Parameter, body, response and principal types are Go type parameters of
// the registration functions. They are captured as type witnesses when the
// route is registered and drive both the document and request binding:
//
//	type ItemParams struct {
//	    ID string `path:"id"`
//	}
//
//	r := oapi.New(oapi.WithTitle("Items"), oapi.WithVersion("1.0.0"))
//	oapi.Get(r, "/items/{id}", func(c *oapi.ResponseContext[Item], p *ItemParams) error {
//	    c.Respond(store.Get(p.ID))
//	    return nil
//	}, oapi.WithSummary("Get item"))
//	oapi.Post(r, "/items", func(c *oapi.ResponseContext[Item], _ *oapi.Void, in *NewItem) error {
//	    c.Respond(store.Add(in))
//	    return nil
//	}, oapi.WithStatus(http.StatusCreated))
//
// Registration failures (unrepresentable types, duplicate routes, bad
// modules or examples) panic with a *RegistrationError before anything is
// installed, the way http.ServeMux does.
//
// Authenticated routes resolve their principal lazily through an
// AuthProvider:
//
//	users := oapi.Authenticated[*User](r, provider)
//	oapi.AuthGet(users, "/me", func(c *oapi.AuthContext[*User, Profile], _ *oapi.Void) error {
//	    u, err := c.Principal()
//	    ...
//	})
//
// Documentation is enriched with modules: any type with a Document(*Operation)
// method. The With* route options register the built-in ones.
package oapi
