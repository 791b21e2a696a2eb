package main

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/dmitrymomot/relay/core/request"
	"github.com/dmitrymomot/relay/core/response"
	"github.com/dmitrymomot/relay/core/router"
	"github.com/dmitrymomot/relay/middleware"
)

type doubledKey struct{}

// mount installs the demo middleware and resources on r.
func mount(r *router.Router) error {
	cors, err := middleware.CORS(middleware.CORSConfig{
		Origin:         "*",
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		ExposedHeaders: "X-Request-ID",
		MaxAge:         600,
	})
	if err != nil {
		return err
	}

	if err := r.Use(
		cors,
		middleware.SecurityHeaders(middleware.BalancedSecurity),
		middleware.BodyParser(middleware.BodyParserConfig{MaxSize: 1 << 20}),
		double,
	); err != nil {
		return err
	}

	if err := r.AddResource("/random/:number", random{}); err != nil {
		return err
	}
	return r.AddResource("/echo", router.ResourceFunc(func(v *router.Verbs) {
		v.Post(echo)
	}))
}

// double stores twice the :number parameter for routes that have one.
func double(_ *response.Handle, req *request.Context) error {
	raw := req.Param("number")
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	req.SetValue(doubledKey{}, n*2)
	return nil
}

type random struct{}

func (random) Register(v *router.Verbs) {
	v.Get(func(res *response.Handle, req *request.Context) error {
		doubled, ok := req.Value(doubledKey{}).(int)
		if !ok {
			return res.Send(http.StatusBadRequest, response.ErrBadRequest.WithMessage("number must be an integer"))
		}
		return res.Send(http.StatusOK, fmt.Sprintf("Number: %s | Double: %d", req.Param("number"), doubled))
	})
}

func echo(res *response.Handle, req *request.Context) error {
	body, _ := middleware.GetBody(req)
	return res.Send(http.StatusOK, map[string]any{
		"body":       body,
		"request_id": requestID(req),
	})
}

func requestID(req *request.Context) string {
	id, _ := middleware.GetRequestID(req)
	return id
}
