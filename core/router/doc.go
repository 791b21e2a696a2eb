// Package router binds resources to a transport and runs every request
// through the same sequence: wrap the response, snapshot the request, run
// the middleware pipeline, then invoke the verb handler.
//
// A resource declares the verbs it serves explicitly:
//
//	type random struct{}
//
//	func (random) Register(v *router.Verbs) {
//		v.Get(func(res *response.Handle, req *request.Context) error {
//			return res.Send(http.StatusOK, "Number: "+req.Param("number"))
//		})
//	}
//
//	r := router.New(nethttp.New(), router.WithFallbackStatus(http.StatusNotImplemented))
//	_ = r.Use(middleware.RequestID(middleware.RequestIDConfig{}))
//	_ = r.AddResource("/random/:number", random{})
//	_ = r.ServeStatic(ctx, "./public", "/")
//	r.Freeze()
//
// Verbs a resource does not declare are answered by the fallback, as are
// unknown paths. A failing middleware step ends the request with a 5xx
// response and the handler never runs. Registration is only possible
// until Freeze.
package router
